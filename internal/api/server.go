// Package api exposes the observation-planning services over HTTP: transit
// and window searches, the rolling schedule, satellite pass prediction and
// the live pointing stream.
package api

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/lowfreq/meridian/internal/astro"
	"github.com/lowfreq/meridian/internal/auth"
	"github.com/lowfreq/meridian/internal/config"
	"github.com/lowfreq/meridian/internal/ephemeris"
	"github.com/lowfreq/meridian/internal/health"
	"github.com/lowfreq/meridian/internal/logging"
	"github.com/lowfreq/meridian/internal/metrics"
	"github.com/lowfreq/meridian/internal/rfi"
	"github.com/lowfreq/meridian/internal/schedule"
	"github.com/lowfreq/meridian/internal/stream"
)

// Deps carries the services the handlers delegate to. Schedule and RFI are
// optional; their routes are only registered when the dependency is present.
type Deps struct {
	Site      astro.Site
	Ephemeris *ephemeris.Provider
	Schedule  *schedule.Cache
	RFI       *rfi.Predictor
	Stream    *stream.Handler
	Health    *health.Handler
	Web       fs.FS
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg config.Config, deps Deps, logger *logging.Logger) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", deps.Health.Healthz)
	mux.HandleFunc("GET /readyz", deps.Health.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/bodies", bodiesHandler())
	mux.HandleFunc("GET /api/v1/transits", transitsHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/windows", windowsHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/profile", profileHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/stream", streamHandler(logger, deps, cfg.Stream))
	if deps.Schedule != nil {
		mux.HandleFunc("GET /api/v1/schedule", scheduleHandler(deps.Schedule))
	}
	if deps.RFI != nil {
		mux.HandleFunc("GET /api/v1/passes", passesHandler(logger, deps))
	}
	if deps.Web != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Web))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func loggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			log := logger.Infow
			if probePath(r.URL.Path) {
				log = logger.Debugw
			}
			log("request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
