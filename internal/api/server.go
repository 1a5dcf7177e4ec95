// Package api exposes the interview engine and knowledge base over HTTP and MCP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepd-app/prepd/internal/interview"
	"github.com/prepd-app/prepd/internal/rag"
	"github.com/prepd-app/prepd/internal/storage"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxImportBodySize = 10 << 20  // 10MB

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Store  *storage.Store
	RAG    *rag.Service
	Agents []interview.Agent
	Token  string
}

// NewHandler returns the REST API. All routes except /health require the
// bearer token.
func NewHandler(deps Deps) http.Handler {
	sessions := NewRegistry(deps.Store, deps.Agents)

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/sessions", handleCreateSession(deps, sessions))
		r.Get("/v1/sessions/{id}", handleGetSession(sessions))
		r.Post("/v1/sessions/{id}/question", handleNextQuestion(deps, sessions))
		r.Post("/v1/sessions/{id}/answer", handleSubmitAnswer(deps, sessions))
		r.Get("/v1/sessions/{id}/progress", handleProgress(sessions))

		r.Get("/v1/knowledge/status", handleKnowledgeStatus(deps))
		r.Post("/v1/knowledge/import", handleKnowledgeImport(deps))
		r.Post("/v1/knowledge/rebuild", handleKnowledgeRebuild(deps))
		r.Get("/v1/knowledge/search", handleKnowledgeSearch(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
