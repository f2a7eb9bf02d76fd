package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the progress document served at /progress.
type Snapshot struct {
	Running        bool   `json:"running"`
	Total          int    `json:"total"`
	Sent           int    `json:"sent"`
	Failed         int    `json:"failed"`
	CurrentAccount string `json:"current_account,omitempty"`
	Subject        string `json:"subject,omitempty"`
}

// ProgressFunc reports the current dispatch state to the status server.
type ProgressFunc func() Snapshot

// Server serves Prometheus metrics and a small JSON status API while a
// dispatch run is in progress.
type Server struct {
	httpServer *http.Server
	metrics    *Metrics
	progress   ProgressFunc
	addr       string
	logger     *slog.Logger
}

// NewServer creates a new status HTTP server
func NewServer(m *Metrics, progress ProgressFunc, addr string, logger *slog.Logger) *Server {
	if addr == "" {
		addr = ":9090"
	}
	s := &Server{
		metrics:  m,
		progress: progress,
		addr:     addr,
		logger:   logger,
	}
	// Built here, not in ListenAndServe: Shutdown may run on another
	// goroutine and must see a fully constructed server.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(
		s.metrics.Registry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))

	r.Get("/progress", s.handleProgress)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap := Snapshot{}
	if s.progress != nil {
		snap = s.progress()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("failed to encode progress", "error", err)
	}
}

// ListenAndServe starts the status HTTP server
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting status server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the status server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}
