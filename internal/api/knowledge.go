package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prepd-app/prepd/internal/rag"
	"github.com/prepd-app/prepd/internal/vectorstore"
)

func handleKnowledgeStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := deps.RAG.Status()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read knowledge status: %v", err)
			return
		}
		writeJSON(w, status)
	}
}

// handleKnowledgeImport accepts a JSON array of records, or pipe-delimited
// text when ?format=text is given.
func handleKnowledgeImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		var result rag.ImportResult
		var err error
		if r.URL.Query().Get("format") == "text" {
			result, err = deps.RAG.ImportText(r.Context(), r.Body)
		} else {
			result, err = deps.RAG.ImportJSON(r.Context(), r.Body)
		}
		if rag.IsUnavailable(err) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "knowledge base unavailable: %v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "import failed: %v", err)
			return
		}

		writeJSON(w, result)
	}
}

func handleKnowledgeRebuild(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.RAG.RebuildIndex(r.Context()); err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "rebuild failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "rebuilt"})
	}
}

func handleKnowledgeSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}

		topK := parseIntParam(r, "k", 5, 50)

		contentType := r.URL.Query().Get("type")
		var (
			results []vectorstore.SearchResult
			err     error
		)
		switch contentType {
		case rag.TypeAnswer:
			results, err = deps.RAG.RetrieveBestAnswers(r.Context(), query, topK)
		case rag.TypeJD:
			results, err = deps.RAG.RetrieveSimilarJD(r.Context(), query, topK)
		case "", rag.TypeQuestion:
			results, err = deps.RAG.RetrieveSimilarQuestions(r.Context(), query, topK)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown type %q", contentType)
			return
		}
		if rag.IsUnavailable(err) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "knowledge base unavailable: %v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}
		if results == nil {
			results = []vectorstore.SearchResult{}
		}

		writeJSON(w, map[string]any{"results": results})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
