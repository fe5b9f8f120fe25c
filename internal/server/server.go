// Package server exposes a read-only HTTP API over the memory store.
// Mutation stays on the CLI, where the advisory write lock lives.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/engram/engram/internal/brief"
	"github.com/engram/engram/internal/store"
)

// Server is the engram HTTP API server.
type Server struct {
	db        *store.DB
	router    chi.Router
	briefOpts brief.Options
	version   string
	started   time.Time
}

// New creates a Server over the given database.
func New(db *store.DB, briefOpts brief.Options, version string) *Server {
	s := &Server{
		db:        db,
		briefOpts: briefOpts,
		version:   version,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/brief", s.handleBrief)
		r.Get("/search", s.handleSearch)
		r.Get("/records/{recordID}", s.handleGetRecord)
		r.Get("/sessions", s.handleSessions)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
