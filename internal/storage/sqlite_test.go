package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrations_Idempotent(t *testing.T) {
	s := openTestStore(t)

	// Re-running against an already migrated database is a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := Session{
		ID:             "sess-1",
		Resume:         "resume text",
		JobDescription: "jd text",
		Phase:          "warm_up",
		CreatedAt:      created,
	}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Resume != sess.Resume || got.JobDescription != sess.JobDescription || got.Phase != "warm_up" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetSession("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateSessionPhase(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveSession(Session{ID: "sess-1", Phase: "warm_up"}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	if err := s.UpdateSessionPhase("sess-1", "technical"); err != nil {
		t.Fatalf("UpdateSessionPhase: %v", err)
	}
	got, _ := s.GetSession("sess-1")
	if got.Phase != "technical" {
		t.Errorf("phase = %q, want %q", got.Phase, "technical")
	}

	if err := s.UpdateSessionPhase("ghost", "technical"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAnswers(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveSession(Session{ID: "sess-1", Phase: "warm_up"}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	for i, score := range []float64{7.0, 8.5} {
		id, err := s.SaveAnswer(Answer{
			SessionID: "sess-1",
			TurnIndex: i,
			Role:      "hr",
			Question:  "Q",
			Answer:    "A",
			Score:     score,
		})
		if err != nil {
			t.Fatalf("SaveAnswer %d: %v", i, err)
		}
		if id <= 0 {
			t.Fatalf("id = %d, want positive", id)
		}
	}

	answers, err := s.ListAnswers("sess-1")
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
	if answers[0].TurnIndex != 0 || answers[1].TurnIndex != 1 {
		t.Error("answers not ordered by turn index")
	}
	if answers[1].Score != 8.5 {
		t.Errorf("score = %v, want 8.5", answers[1].Score)
	}

	if other, _ := s.ListAnswers("other"); len(other) != 0 {
		t.Errorf("got %d answers for unknown session, want 0", len(other))
	}
}

func TestKnowledgeCounts(t *testing.T) {
	s := openTestStore(t)

	for _, contentType := range []string{"question", "question", "answer"} {
		if _, err := s.db.Exec(`
			INSERT INTO knowledge_vectors (content_type, content, embedding, metadata, created_at)
			VALUES (?, 'c', x'00000000', '', '2026-01-01T00:00:00Z')`, contentType); err != nil {
			t.Fatalf("inserting vector: %v", err)
		}
	}

	total, err := s.KnowledgeCount()
	if err != nil {
		t.Fatalf("KnowledgeCount: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	questions, err := s.KnowledgeCountByType("question")
	if err != nil {
		t.Fatalf("KnowledgeCountByType: %v", err)
	}
	if questions != 2 {
		t.Errorf("questions = %d, want 2", questions)
	}
}
