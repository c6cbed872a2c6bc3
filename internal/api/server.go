// Package api exposes the harvester's admin HTTP surface: a run trigger,
// a health probe and the Prometheus metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"usage-harvester/internal/observability"
)

// Runner starts one harvesting run. Implemented by the orchestrator.
type Runner interface {
	Run(ctx context.Context) error
}

// Server is the admin HTTP server.
type Server struct {
	addr   string
	runner Runner
	logger observability.Logger
	server *http.Server
}

// NewServer builds the admin server and its routes.
func NewServer(addr string, runner Runner, registry *prometheus.Registry, logger observability.Logger) *Server {
	s := &Server{
		addr:   addr,
		runner: runner,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/harvester/start", s.handleStart)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{Addr: addr, Handler: r}
	return s
}

// ListenAndServe blocks serving requests until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Info(context.Background(), "Admin server listening", observability.Fields{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleStart kicks off a run in the background and returns immediately.
// Tenants still in flight from a previous run are skipped by the
// orchestrator's per-tenant guard.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	go func() {
		// The run outlives the request; it is bounded by process
		// lifetime, not by the request context.
		if err := s.runner.Run(context.Background()); err != nil {
			s.logger.Error(context.Background(), "Triggered run failed", err, nil)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
