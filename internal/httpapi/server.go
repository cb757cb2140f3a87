// Package httpapi exposes a read-only status surface over pool and
// orchestrator Stats(), plus a /metrics endpoint. It carries no
// invariants of its own — it is purely observational, as spec §6
// [FULL] calls out.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Swind/go-task-runner/core"
)

// StatsProvider is anything that can report a point-in-time pool
// snapshot. core.Pool, core.TrackingPool, and crawl.Orchestrator all
// satisfy this.
type StatsProvider interface {
	Stats() core.PoolStats
}

// Server wires chi handlers over a named set of StatsProviders.
type Server struct {
	router chi.Router
	pools  map[string]StatsProvider
}

// New constructs a Server exposing /healthz, /metrics, and
// /pools/{name} over the given named providers.
func New(pools map[string]StatsProvider) *Server {
	s := &Server{pools: pools}
	r := chi.NewRouter()
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/pools", s.listPools)
	r.Get("/pools/{name}", s.getPool)

	s.router = r
	return s
}

// ServeHTTP lets Server be passed straight to http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPools(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.pools))
	for name := range s.pools {
		names = append(names, name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": names})
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	provider, ok := s.pools[name]
	if !ok {
		writeError(w, http.StatusNotFound, "pool not found")
		return
	}
	writeJSON(w, http.StatusOK, provider.Stats())
}

func loggingMiddleware(next http.Handler) http.Handler {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration", time.Since(start).String(),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", "error", rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("write JSON failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
