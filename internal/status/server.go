package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server provides a local HTTP endpoint for pipeline status queries.
type Server struct {
	collector  *Collector
	port       int
	httpServer *http.Server
	version    string
}

// ServerConfig holds configuration for the status server.
type ServerConfig struct {
	Port    int    // HTTP server port (default: 8089)
	Version string // seqcipher version string
}

// NewServer creates a new status HTTP server.
func NewServer(cfg ServerConfig, collector *Collector) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8089
	}
	return &Server{
		collector: collector,
		port:      cfg.Port,
		version:   cfg.Version,
	}
}

// Handler returns the router serving the status endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/completions", s.handleCompletions)

	return r
}

// Start begins listening for HTTP requests on localhost.
// This method blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

// handleStatus returns the full snapshot.
// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to collect status: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, snap)
}

// handleHealth reports whether the worker is still accepting work.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  HealthStatusOK,
		Version: s.version,
	}

	if s.collector.pipelineFn != nil {
		switch s.collector.pipelineFn().WorkerState {
		case "stopping":
			resp.Status = HealthStatusDegraded
		case "terminal":
			resp.Status = HealthStatusUnhealthy
		}
	}

	if resp.Status == HealthStatusUnhealthy {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(resp)
		return
	}
	writeJSON(w, resp)
}

// handleCompletions returns the newest ledger rows.
// GET /completions?limit=N
func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	views, err := s.collector.Recent(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read ledger: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"completions": views,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
