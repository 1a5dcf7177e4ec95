package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database with the knowledge_vectors table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE knowledge_vectors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content_type TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// unitVector returns a normalized vector pointing mostly along the given axis.
func unitVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis%dim] = 1
	return v
}

// blend mixes two vectors and normalizes, producing a vector closer to a than b
// when wa > wb.
func blend(a, b []float32, wa, wb float32) []float32 {
	v := make([]float32, len(a))
	var norm float64
	for i := range v {
		v[i] = wa*a[i] + wb*b[i]
		norm += float64(v[i]) * float64(v[i])
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

func TestInsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := New(openTestDB(t))

	vec := unitVector(8, 0)
	id, err := s.Insert(ctx, "question", "Explain Go interfaces", vec, `{"topic":"go"}`)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d, want positive", id)
	}

	if err := s.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	results, err := s.Search(ctx, vec, 1, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ID != id {
		t.Errorf("ID = %d, want %d", results[0].ID, id)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("similarity = %f, want > 0.99", results[0].Similarity)
	}
	if results[0].Metadata != `{"topic":"go"}` {
		t.Errorf("metadata = %q", results[0].Metadata)
	}
}

func TestSearch_BeforeBuildIndex(t *testing.T) {
	s := New(openTestDB(t))

	if _, err := s.Search(context.Background(), unitVector(8, 0), 3, ""); !errors.Is(err, ErrIndexNotBuilt) {
		t.Errorf("err = %v, want ErrIndexNotBuilt", err)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	s := New(openTestDB(t))

	if err := s.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex on empty store: %v", err)
	}

	results, err := s.Search(ctx, unitVector(8, 0), 3, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearch_RankedBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := New(openTestDB(t))

	target := unitVector(8, 0)
	other := unitVector(8, 1)

	near, _ := s.Insert(ctx, "question", "near", blend(target, other, 0.9, 0.1), "")
	far, _ := s.Insert(ctx, "question", "far", blend(target, other, 0.2, 0.8), "")
	mid, _ := s.Insert(ctx, "question", "mid", blend(target, other, 0.6, 0.4), "")

	if err := s.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	results, err := s.Search(ctx, target, 3, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	wantOrder := []int64{near, mid, far}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("position %d: ID = %d, want %d", i, results[i].ID, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Error("results not in descending similarity order")
		}
	}
}

func TestSearch_ContentTypeFilter(t *testing.T) {
	ctx := context.Background()
	s := New(openTestDB(t))

	vec := unitVector(8, 0)
	s.Insert(ctx, "question", "a question", vec, "")
	s.Insert(ctx, "answer", "an answer", vec, "")
	s.Insert(ctx, "jd", "a job description", vec, "")

	if err := s.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	results, err := s.Search(ctx, vec, 10, "answer")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ContentType != "answer" {
		t.Errorf("content type = %q, want %q", results[0].ContentType, "answer")
	}
}

func TestInsert_InvisibleUntilRebuild(t *testing.T) {
	ctx := context.Background()
	s := New(openTestDB(t))

	vec := unitVector(8, 0)
	s.Insert(ctx, "question", "first", vec, "")
	if err := s.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	s.Insert(ctx, "question", "second", vec, "")

	results, err := s.Search(ctx, vec, 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results before rebuild, want 1", len(results))
	}

	if err := s.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	results, err = s.Search(ctx, vec, 10, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results after rebuild, want 2", len(results))
	}
}

func TestDelete_RebuildPending(t *testing.T) {
	ctx := context.Background()
	s := New(openTestDB(t))

	vec := unitVector(8, 0)
	id, _ := s.Insert(ctx, "question", "doomed", vec, "")
	if err := s.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	pending, err := s.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// The stale record keeps serving until the pending rebuild runs.
	results, _ := s.Search(ctx, vec, 10, "")
	if len(results) != 1 {
		t.Fatalf("got %d results before rebuild, want 1 (stale)", len(results))
	}

	if err := pending.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	results, _ = s.Search(ctx, vec, 10, "")
	if len(results) != 0 {
		t.Errorf("got %d results after rebuild, want 0", len(results))
	}
}

func TestDelete_MissingRecord(t *testing.T) {
	s := New(openTestDB(t))

	if _, err := s.Delete(context.Background(), 999); err == nil {
		t.Error("expected error for missing record")
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	s := New(openTestDB(t))

	vec := unitVector(8, 0)
	s.Insert(ctx, "question", "q1", vec, "")
	s.Insert(ctx, "question", "q2", vec, "")
	s.Insert(ctx, "answer", "a1", vec, "")

	total, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	questions, err := s.CountByType(ctx, "question")
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if questions != 2 {
		t.Errorf("questions = %d, want 2", questions)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.25, 0}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("index %d: %f != %f", i, out[i], in[i])
		}
	}
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for misaligned blob")
	}
}
