package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Service is the station pipeline as seen by the API.
type Service interface {
	ReadinessChecker
	View(ctx context.Context, station string, req domain.ViewRequest) (domain.View, error)
	Refresh(ctx context.Context, station string) error
	RefreshAll(ctx context.Context) error
}

// Station is a configured station as listed by the API.
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Server exposes health, readiness, metrics and the dashboard API.
type Server struct {
	httpServer *http.Server
	svc        Service
	stations   []Station
	loc        *time.Location
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes. loc is the station timezone used for start/end query dates.
func NewServer(addr string, svc Service, stations []Station, loc *time.Location, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      requestLogger(logger, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:      svc,
		stations: stations,
		loc:      loc,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/stations/{station}/view", s.handleView)
	mux.HandleFunc("GET /api/stations/{station}/export.xlsx", s.handleExport)
	mux.HandleFunc("POST /api/stations/{station}/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/refresh", s.handleRefreshAll)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
