package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/engram/engram/internal/brief"
	"github.com/engram/engram/internal/store"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(time.Now())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	doc, err := brief.Build(s.db, s.briefOpts, time.Now())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(doc))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q parameter required"})
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := s.db.Search(query, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// handleGetRecord reads without reinforcing. The API is a viewing
// surface; only a deliberate CLI get counts as recall.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")

	rec, err := s.db.Peek(id, time.Now())
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.db.RecentSessions(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(entries),
		"sessions": entries,
	})
}
