// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package healthserver is the read-only HTTP observability surface: health,
// status, metrics, dashboard, plus a /api/v1/backups and /api/v1/alerts
// projection of Monitor and Rotation state. It never mutates anything.
package healthserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/baktainer/baktainer/internal/middleware"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/rotation"
	"github.com/baktainer/baktainer/internal/runtime"
)

// chiMiddleware adapts our func(http.HandlerFunc) http.HandlerFunc
// middlewares to Chi's native func(http.Handler) http.Handler shape.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Config controls the listener and CORS/rate-limit posture.
type Config struct {
	Bind              string
	Port              int
	CORSAllowedOrigins []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Server is the observability HTTP surface. It implements suture.Service
// (Serve(context.Context) error) so it can be supervised alongside the
// Scheduler.
type Server struct {
	cfg       Config
	runtime   runtime.Client
	mon       *monitor.Monitor
	rotation  *rotation.Rotation
	startTime time.Time
	logger    zerolog.Logger

	httpServer *http.Server
}

// New builds a Server. rot may be nil; the /api/v1/dashboard endpoint then
// omits its rotation statistics.
func New(cfg Config, runtimeClient runtime.Client, mon *monitor.Monitor, rot *rotation.Rotation, logger zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		runtime:   runtimeClient,
		mon:       mon,
		rotation:  rot,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Serve starts the HTTP listener and blocks until ctx is canceled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	port := s.cfg.Port
	if port <= 0 {
		port = 8080
	}
	addr := s.cfg.Bind + ":" + strconv.Itoa(port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("health server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET"},
		MaxAge:         300,
	})

	requests := s.cfg.RateLimitRequests
	if requests <= 0 {
		requests = 100
	}
	window := s.cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(httprate.LimitByIP(requests, window))

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/backups", s.handleBackups)
		r.Get("/alerts", s.handleAlerts)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
