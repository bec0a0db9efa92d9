// Package api serves document operations and batch jobs over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/docrev/internal/config"
	"github.com/dgallion1/docrev/internal/engine"
	"github.com/dgallion1/docrev/internal/pipeline"
)

// Server is the HTTP API server for docrev.
type Server struct {
	router       chi.Router
	runner       *engine.Runner
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(runner *engine.Runner, orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		runner:       runner,
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/revisions", s.handleOperation(engine.OpRevisions))
		r.Post("/api/comments", s.handleOperation(engine.OpComments))
		r.Post("/api/stats", s.handleOperation(engine.OpStats))
		r.Post("/api/inspect", s.handleOperation(engine.OpInspect))
		r.Post("/api/revisions/accept", s.handleOperation(engine.OpAccept))
		r.Post("/api/revisions/reject", s.handleOperation(engine.OpReject))
		r.Post("/api/report", s.handleReport)

		r.Post("/api/batch", s.handleBatch)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/items/{index}/file", s.handleJobFile)

		r.Get("/api/stats/latency", s.handleLatencyStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
