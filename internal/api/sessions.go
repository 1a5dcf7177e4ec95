package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prepd-app/prepd/internal/interview"
	"github.com/prepd-app/prepd/internal/storage"
)

// Session is one live interview. Its mutex serializes question and answer
// handling so concurrent requests cannot interleave turns.
type Session struct {
	ID string

	mu        sync.Mutex
	ic        *interview.Context
	machine   *interview.StateMachine
	scheduler *interview.Scheduler
	createdAt time.Time
}

// Registry tracks in-memory session state keyed by ID. Persistent state
// (session row, answer rows) lives in the store; the registry holds the parts
// that only matter while the process runs.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store  *storage.Store
	agents []interview.Agent
}

func NewRegistry(store *storage.Store, agents []interview.Agent) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		agents:   agents,
	}
}

// Create starts a new session in the warm-up phase and persists it.
func (reg *Registry) Create(resume, jobDescription string) (*Session, error) {
	scheduler, err := interview.NewScheduler(reg.agents, interview.PhaseBased)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID: uuid.New().String(),
		ic: &interview.Context{
			Resume:         resume,
			JobDescription: jobDescription,
			CurrentPhase:   interview.PhaseWarmUp,
		},
		machine:   interview.NewStateMachine(),
		scheduler: scheduler,
		createdAt: time.Now().UTC(),
	}

	if err := reg.store.SaveSession(storage.Session{
		ID:             s.ID,
		Resume:         resume,
		JobDescription: jobDescription,
		Phase:          interview.PhaseWarmUp.String(),
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.createdAt,
	}); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	reg.sessions[s.ID] = s
	reg.mu.Unlock()
	return s, nil
}

// Get returns the live session or nil.
func (reg *Registry) Get(id string) *Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.sessions[id]
}

type createSessionRequest struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
}

func handleCreateSession(deps Deps, sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.JobDescription == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "job_description is required")
			return
		}

		s, err := sessions.Create(req.Resume, req.JobDescription)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create session: %v", err)
			return
		}

		writeJSON(w, map[string]string{
			"session_id": s.ID,
			"phase":      interview.PhaseWarmUp.String(),
		})
	}
}

func handleGetSession(sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessions.Get(chi.URLParam(r, "id"))
		if s == nil {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, map[string]any{
			"session_id": s.ID,
			"phase":      s.machine.Phase().String(),
			"history":    s.ic.History,
			"created_at": s.createdAt.Format(time.RFC3339),
		})
	}
}

func handleNextQuestion(deps Deps, sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessions.Get(chi.URLParam(r, "id"))
		if s == nil {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.machine.Progress().IsCompleted {
			httpError(w, http.StatusConflict, "invalid_request_error", "interview already completed")
			return
		}

		s.ic.CurrentPhase = s.machine.Phase()
		turn, err := s.scheduler.ExecuteTurn(r.Context(), s.ic)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to generate question: %v", err)
			return
		}

		// The question counts against the phase it was asked in; hitting the
		// phase maximum advances so the next question lands in the new phase.
		phase, advanced := s.machine.RecordQuestion()
		if advanced {
			s.ic.CurrentPhase = phase
			if err := deps.Store.UpdateSessionPhase(s.ID, phase.String()); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to persist phase: %v", err)
				return
			}
		}

		writeJSON(w, map[string]any{
			"role":        string(turn.Role),
			"interviewer": turn.RoleName,
			"question":    turn.Question,
			"phase":       phase.String(),
			"completed":   s.machine.Progress().IsCompleted,
		})
	}
}

type submitAnswerRequest struct {
	Answer string `json:"answer"`
}

func handleSubmitAnswer(deps Deps, sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessions.Get(chi.URLParam(r, "id"))
		if s == nil {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req submitAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Answer == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "answer is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		analysis, err := s.scheduler.ProcessAnswer(r.Context(), s.ic, req.Answer)
		if errors.Is(err, interview.ErrNoPendingTurn) {
			httpError(w, http.StatusConflict, "invalid_request_error", "no question awaiting an answer")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to analyze answer: %v", err)
			return
		}

		turnIndex := len(s.ic.History) - 1
		turn := s.ic.History[turnIndex]
		if _, err := deps.Store.SaveAnswer(storage.Answer{
			SessionID: s.ID,
			TurnIndex: turnIndex,
			Role:      string(turn.Role),
			Question:  turn.Question,
			Answer:    req.Answer,
			Score:     analysis.Score,
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save answer: %v", err)
			return
		}

		phase, advanced := s.machine.MaybeAdvance(analysis)
		if advanced {
			s.ic.CurrentPhase = phase
			if err := deps.Store.UpdateSessionPhase(s.ID, phase.String()); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to persist phase: %v", err)
				return
			}
		}

		writeJSON(w, map[string]any{
			"analysis":            analysis,
			"follow_up_suggested": s.scheduler.ShouldFollowUp(req.Answer, analysis),
			"phase":               phase.String(),
			"completed":           s.machine.Progress().IsCompleted,
		})
	}
}

func handleProgress(sessions *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessions.Get(chi.URLParam(r, "id"))
		if s == nil {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, s.machine.Progress())
	}
}
