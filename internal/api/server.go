// Package api serves the propagation HTTP API.
package api

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/tleprop/internal/auth"
	"github.com/star/tleprop/internal/health"
	"github.com/star/tleprop/internal/httputil"
	"github.com/star/tleprop/internal/metrics"
	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/tle"
)

// Config holds the HTTP layer settings.
type Config struct {
	Addr         string
	TrustProxy   bool
	Auth         auth.Config
	RatePerSec   float64 // per client IP; 0 disables limiting
	RateBurst    int
	MaxPositions int // sample budget for one propagate or frames request
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. fetcher may be nil, which
// disables catalog refreshes; stream may be nil, which leaves the websocket
// route unregistered.
func NewServer(cfg Config, logger *slog.Logger, store *tle.Store, fetcher *tle.Fetcher, prop *propagation.Propagator, stream http.Handler) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store, fetcher != nil))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/tle/parse", parseHandler(prop.Config()))
	mux.HandleFunc("GET /api/v1/tle/metadata", metadataHandler(store))
	mux.HandleFunc("POST /api/v1/tle/fetch", fetchHandler(logger, store, fetcher))
	mux.HandleFunc("POST /api/v1/propagate", propagateHandler(logger, prop, cfg.MaxPositions))
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}", satelliteHandler(logger, prop))
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/passes", passesHandler(logger, prop))
	mux.HandleFunc("GET /api/v1/frames", framesHandler(logger, prop, cfg.MaxPositions))
	if stream != nil {
		mux.Handle("GET /api/v1/stream/{norad_id}", stream)
	}

	// Build middleware chain: metrics -> logging -> rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	if cfg.RatePerSec > 0 {
		burst := max(cfg.RateBurst, 1)
		handler = rateLimitMiddleware(newIPRateLimiter(cfg.RatePerSec, burst), cfg.TrustProxy)(handler)
	}
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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

// Hijack lets websocket upgrades pass through the recorder.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", sr.ResponseWriter)
	}
	sr.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
