// Package server provides the HTTP server for the Mudra dashboard and API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/server/api"
)

// EventSource supplies lifecycle events for the /api/events stream.
type EventSource interface {
	Subscribe() (<-chan lifecycle.Event, func())
}

// Config holds the server configuration. Every field is optional; routes
// whose collaborator is missing are not registered.
type Config struct {
	StaticDir string
	Service   api.Service
	Events    EventSource
	Metrics   http.Handler
	Logger    *zap.Logger
}

// Server represents the HTTP server for the Mudra application.
type Server struct {
	config Config
	router *chi.Mux
	logger *zap.Logger
	start  time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: logger.Named("http"),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/api/health", s.handleHealth)

	if s.config.Service != nil {
		recognition := api.NewRecognitionHandler(s.config.Service)
		gestures := api.NewGestureHandler(s.config.Service)

		s.router.Get("/api/status", recognition.Status)
		s.router.Get("/api/detections", gestures.Detections)
		s.router.Mount("/api/recognition", recognition.Routes())
		s.router.Mount("/api/gestures", gestures.Routes())
		s.router.Mount("/api/calibration", gestures.CalibrationRoutes())
	}

	if s.config.Events != nil {
		s.router.Handle("/api/events", NewEventsHandler(s.config.Events, s.logger))
	}

	if s.config.Metrics != nil {
		s.router.Handle("/metrics", s.config.Metrics)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.router.Handle("/*", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// loggingMiddleware logs each request at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until it fails or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return srv.Shutdown(ctx)
}
