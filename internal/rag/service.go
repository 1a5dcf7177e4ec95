// Package rag hides the cost and failure modes of embedding-model and index
// initialization behind a facade with lazy, single-flight startup and sticky
// failure. The application keeps functioning if the facade never initializes;
// callers treat its errors as "no retrieved context available".
package rag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prepd-app/prepd/internal/embedding"
	"github.com/prepd-app/prepd/internal/vectorstore"
)

// Content types stored in the knowledge base.
const (
	TypeQuestion     = "question"
	TypeAnswer       = "answer"
	TypeJD           = "jd"
	TypeUserQuestion = "user_question"
)

var (
	// ErrPreviouslyFailed short-circuits every call after a failed
	// initialization. Only RebuildIndex clears it.
	ErrPreviouslyFailed = errors.New("rag initialization previously failed")

	// ErrInitTimeout converts a slow initialization into a sticky failure,
	// favoring responsiveness over completeness.
	ErrInitTimeout = errors.New("rag initialization timed out")
)

// IsUnavailable reports whether err means the knowledge base cannot serve
// and the caller should proceed without retrieved context.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrPreviouslyFailed) ||
		errors.Is(err, ErrInitTimeout) ||
		errors.Is(err, embedding.ErrModelLoad)
}

// State is the facade's lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const defaultInitTimeout = 10 * time.Second

// KnowledgeCounter is the cheap metadata view of the backing store; it works
// without initializing the embedding model or index.
type KnowledgeCounter interface {
	KnowledgeCount() (int64, error)
	KnowledgeCountByType(contentType string) (int64, error)
}

// internals are the expensively constructed members, built exactly once.
type internals struct {
	embedder *embedding.Service
	vectors  *vectorstore.Store
}

// Service is the retrieval facade. State transitions:
// Uninitialized → Initializing → {Ready | Failed}. Failed is sticky until
// RebuildIndex explicitly retries.
type Service struct {
	db          *sql.DB
	counts      KnowledgeCounter
	modelDir    string
	initTimeout time.Duration

	mu       sync.Mutex
	state    State
	stateErr error
	inner    *internals

	initGroup singleflight.Group

	// initHook runs at the start of every initialization attempt (tests only).
	initHook func()
}

// New creates an uninitialized Service. Nothing expensive happens until the
// first retrieval or store operation.
func New(db *sql.DB, counts KnowledgeCounter, modelDir string) *Service {
	return &Service{
		db:          db,
		counts:      counts,
		modelDir:    modelDir,
		initTimeout: defaultInitTimeout,
	}
}

// SetInitTimeout overrides the initialization deadline (used by tests).
func (s *Service) SetInitTimeout(d time.Duration) {
	s.initTimeout = d
}

// State returns the current lifecycle stage.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ensureInitialized performs the lazy, single-flight initialization.
// Concurrent callers all await the same attempt. A timeout marks the facade
// failed even if the attempt would eventually have succeeded.
func (s *Service) ensureInitialized(ctx context.Context) (*internals, error) {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		inner := s.inner
		s.mu.Unlock()
		return inner, nil
	case StateFailed:
		err := s.stateErr
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrPreviouslyFailed, err)
	default:
		s.state = StateInitializing
		s.mu.Unlock()
	}

	// DoChan runs initialization in its own goroutine so the model load's
	// synchronous file I/O and the index build never block the caller past
	// the timeout. The attempt keeps running after a timeout, but its result
	// is discarded because the state is already failed-sticky by then.
	ch := s.initGroup.DoChan("init", func() (any, error) {
		inner, err := s.initialize(context.WithoutCancel(ctx))
		s.settle(inner, err)
		return inner, err
	})

	timer := time.NewTimer(s.initTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*internals), nil
	case <-timer.C:
		s.settle(nil, ErrInitTimeout)
		slog.Error("rag initialization timed out", "timeout", s.initTimeout)
		return nil, ErrInitTimeout
	case <-ctx.Done():
		// The caller gave up; the shared attempt continues and settles state
		// for everyone else.
		return nil, ctx.Err()
	}
}

// settle records the outcome of an initialization attempt. Only the first
// settlement out of Initializing wins; a late success after a timeout is
// discarded.
func (s *Service) settle(inner *internals, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitializing {
		return
	}
	if err != nil {
		s.state = StateFailed
		s.stateErr = err
		return
	}
	s.state = StateReady
	s.inner = inner
}

// initialize loads the embedding model and builds the vector index.
func (s *Service) initialize(ctx context.Context) (*internals, error) {
	if s.initHook != nil {
		s.initHook()
	}
	slog.Info("initializing rag service (first use)", "model_dir", s.modelDir)

	embedder, err := embedding.NewService(s.modelDir)
	if err != nil {
		return nil, fmt.Errorf("loading embedding model: %w", err)
	}

	vectors := vectorstore.New(s.db)
	if err := vectors.BuildIndex(ctx); err != nil {
		return nil, fmt.Errorf("building vector index: %w", err)
	}

	slog.Info("rag service initialized", "dimension", embedder.Dimension())
	return &internals{embedder: embedder, vectors: vectors}, nil
}

// EmbedAndStore embeds content and persists it in the knowledge base. The
// new record becomes searchable at the next index build.
func (s *Service) EmbedAndStore(ctx context.Context, contentType, content, metadata string) (int64, error) {
	inner, err := s.ensureInitialized(ctx)
	if err != nil {
		return 0, err
	}

	vec, err := inner.embedder.Embed(content)
	if err != nil {
		return 0, fmt.Errorf("embedding content: %w", err)
	}

	return inner.vectors.Insert(ctx, contentType, content, vec, metadata)
}

// RetrieveSimilarQuestions returns prior questions similar to the job description.
func (s *Service) RetrieveSimilarQuestions(ctx context.Context, jd string, topK int) ([]vectorstore.SearchResult, error) {
	return s.retrieve(ctx, jd, topK, TypeQuestion)
}

// RetrieveBestAnswers returns reference answers similar to the question.
func (s *Service) RetrieveBestAnswers(ctx context.Context, question string, topK int) ([]vectorstore.SearchResult, error) {
	return s.retrieve(ctx, question, topK, TypeAnswer)
}

// RetrieveSimilarJD returns job descriptions similar to the given one.
func (s *Service) RetrieveSimilarJD(ctx context.Context, jd string, topK int) ([]vectorstore.SearchResult, error) {
	return s.retrieve(ctx, jd, topK, TypeJD)
}

func (s *Service) retrieve(ctx context.Context, query string, topK int, contentType string) ([]vectorstore.SearchResult, error) {
	inner, err := s.ensureInitialized(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := inner.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return inner.vectors.Search(ctx, vec, topK, contentType)
}

// RebuildIndex reconstructs the search index over all persisted vectors.
// As the administrative recovery path it also clears a sticky failure and
// re-attempts initialization.
func (s *Service) RebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateFailed {
		slog.Info("clearing failed rag state for rebuild", "previous_error", s.stateErr)
		s.state = StateUninitialized
		s.stateErr = nil
	}
	s.mu.Unlock()

	inner, err := s.ensureInitialized(ctx)
	if err != nil {
		return err
	}
	return inner.vectors.BuildIndex(ctx)
}

// Reset returns the facade to Uninitialized, releasing the loaded model and
// index. Intended for tests.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUninitialized
	s.stateErr = nil
	s.inner = nil
}

// IsEmpty reports whether the knowledge base holds no vectors. It never
// triggers initialization.
func (s *Service) IsEmpty() (bool, error) {
	count, err := s.counts.KnowledgeCount()
	if err != nil {
		return false, fmt.Errorf("counting knowledge vectors: %w", err)
	}
	return count == 0, nil
}

// Status summarizes the knowledge base without initializing it.
type Status struct {
	State         string `json:"state"`
	TotalVectors  int64  `json:"total_vectors"`
	QuestionCount int64  `json:"question_count"`
	AnswerCount   int64  `json:"answer_count"`
	JDCount       int64  `json:"jd_count"`
}

// Status reports per-type knowledge counts and the facade state.
func (s *Service) Status() (Status, error) {
	total, err := s.counts.KnowledgeCount()
	if err != nil {
		return Status{}, fmt.Errorf("counting knowledge vectors: %w", err)
	}
	st := Status{State: s.State().String(), TotalVectors: total}
	for _, pair := range []struct {
		contentType string
		dest        *int64
	}{
		{TypeQuestion, &st.QuestionCount},
		{TypeAnswer, &st.AnswerCount},
		{TypeJD, &st.JDCount},
	} {
		n, err := s.counts.KnowledgeCountByType(pair.contentType)
		if err != nil {
			return Status{}, fmt.Errorf("counting %s vectors: %w", pair.contentType, err)
		}
		*pair.dest = n
	}
	return st, nil
}

// BuildContext renders search results as a numbered context block, stopping
// before maxLength is exceeded.
func BuildContext(results []vectorstore.SearchResult, maxLength int) string {
	var sb strings.Builder
	for i, r := range results {
		entry := fmt.Sprintf("%d. %s\n", i+1, r.Content)
		if sb.Len()+len(entry) > maxLength {
			break
		}
		sb.WriteString(entry)
	}
	return sb.String()
}
