package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitedown/sitedown/internal/crawler"
)

// StatusSource reports the running crawl's counters. The controller's stats
// are only final at the end of a level, so snapshots may trail slightly.
type StatusSource interface {
	Snapshot() crawler.Stats
}

// Server exposes health, metrics, and crawl-status endpoints while a crawl
// runs. It is optional: CLI runs without server.metrics_addr never start it.
type Server struct {
	router chi.Router
	status StatusSource
	runID  string
	logger *zap.Logger
}

// NewServer builds the router with its middleware stack.
func NewServer(status StatusSource, runID string, logger *zap.Logger) *Server {
	s := &Server{
		status: status,
		runID:  runID,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/v1/crawl", s.crawlStatus)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlStatusResponse struct {
	RunID string        `json:"run_id"`
	Stats crawler.Stats `json:"stats"`
}

func (s *Server) crawlStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no crawl running"})
		return
	}
	s.writeJSON(w, http.StatusOK, crawlStatusResponse{
		RunID: s.runID,
		Stats: s.status.Snapshot(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}
