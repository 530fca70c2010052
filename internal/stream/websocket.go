// Package stream pushes live satellite state over websockets. Clients
// connect to GET /api/v1/stream/{norad_id} and receive one metadata message
// followed by a state message every interval:
//
//	{"type":"metadata","norad_id":25544,"name":"ISS (ZARYA)","epoch":"...","frame":"teme","interval_ms":1000}
//	{"type":"state","t":"...","tsince_min":61.2,"p":[x,y,z],"v":[vx,vy,vz]}
//
// Pings are sent every KeepaliveInterval; a peer that stops answering is
// dropped after twice that.
//
// Browsers send cookies but not Authorization headers on websocket
// upgrades, so streams accept ?token=. Upgrades carrying a foreign Origin
// are refused unless listed in AllowedOrigins, which keeps a third-party
// page from opening a stream with a token it holds in a URL.
package stream

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/star/tleprop/internal/httputil"
	"github.com/star/tleprop/internal/metrics"
	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/tle"
)

// Config holds streaming settings.
type Config struct {
	MaxConcurrentPerIP int
	MaxTotal           int           // 0 means 1000
	Interval           time.Duration // default push interval
	KeepaliveInterval  time.Duration
	TrustProxy         bool
	AllowedOrigins     []string // scheme://host[:port], or "*" for any
}

// Handler serves satellite state streams.
type Handler struct {
	prop     *propagation.Propagator
	config   Config
	limiter  *connLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new streaming handler.
func NewHandler(prop *propagation.Propagator, config Config, logger *slog.Logger) *Handler {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	h := &Handler{
		prop:    prop,
		config:  config,
		limiter: newConnLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
		now:     time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts upgrades without an Origin header (non-browser
// clients), from the same host, or from a configured origin.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

type metadataMessage struct {
	Type       string    `json:"type"`
	NoradID    int       `json:"norad_id"`
	Name       string    `json:"name,omitempty"`
	Epoch      time.Time `json:"epoch"`
	Frame      string    `json:"frame"`
	IntervalMs int64     `json:"interval_ms"`
}

type stateMessage struct {
	Type      string     `json:"type"`
	T         time.Time  `json:"t"`
	TsinceMin float64    `json:"tsince_min"`
	P         [3]float64 `json:"p"`
	V         [3]float64 `json:"v"`
	Warning   bool       `json:"warning,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ServeHTTP upgrades the request and streams until the client leaves or
// the satellite can no longer be propagated.
// GET /api/v1/stream/{norad_id}?frame=teme|ecef&interval_ms=1000
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := tle.ParseCatalogNumber(r.PathValue("norad_id"))
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "invalid norad_id", nil)
		return
	}
	q := r.URL.Query()
	frame, err := propagation.ParseFrame(q.Get("frame"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	interval := h.config.Interval
	if v := q.Get("interval_ms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 60000 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid interval_ms parameter, must be 100-60000", nil)
			return
		}
		interval = time.Duration(n) * time.Millisecond
	}

	sat, err := h.prop.Satellite(id)
	switch {
	case errors.Is(err, propagation.ErrNoDataset):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error(), nil)
		return
	case err != nil:
		httputil.WriteError(w, http.StatusNotFound, err.Error(), nil)
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.checkOrigin(r) {
		h.logger.Warn("stream origin rejected", "remote_ip", ip, "origin", r.Header.Get("Origin"))
		httputil.WriteError(w, http.StatusForbidden, "origin not allowed", nil)
		return
	}

	if !h.limiter.acquire(ip) {
		h.logger.Warn("stream limit exceeded", "remote_ip", ip, "current_count", h.limiter.count(ip))
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams", nil)
		return
	}
	defer h.limiter.release(ip)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Debug("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}

	c := &client{conn: conn, ip: ip, logger: h.logger}
	metrics.StreamOpened()
	start := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip, "norad_id", id, "frame", frame, "interval_ms", interval.Milliseconds())
	defer func() {
		metrics.StreamClosed()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"norad_id", id,
			"messages", c.messagesSent,
			"duration_seconds", int(time.Since(start).Seconds()),
		)
	}()

	done := make(chan struct{})
	go c.readPump(2*h.config.KeepaliveInterval, done)

	if err := c.sendJSON(metadataMessage{
		Type:       "metadata",
		NoradID:    id,
		Name:       sat.Set.Name,
		Epoch:      sat.Set.Epoch.UTC(),
		Frame:      string(frame),
		IntervalMs: interval.Milliseconds(),
	}); err != nil {
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		conn.Close()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-done:
			conn.Close()
			return

		case <-ticker.C:
			msg, err := h.state(id, frame)
			if err != nil {
				h.logger.Info("stream ended", "remote_ip", ip, "norad_id", id, "error", err)
				if err := c.sendJSON(errorMessage{Type: "error", Error: err.Error()}); err != nil {
					h.logger.Debug("stream send error (final error message)", "remote_ip", ip, "error", err)
				}
				c.close(websocket.CloseNormalClosure, "propagation stopped")
				return
			}
			if err := c.sendJSON(msg); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				conn.Close()
				return
			}

		case <-keepalive.C:
			if err := c.ping(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				conn.Close()
				return
			}
		}
	}
}

// state propagates the satellite to the current time. The satellite is
// looked up on every tick so a catalog refresh takes effect mid-stream.
func (h *Handler) state(id int, frame propagation.Frame) (stateMessage, error) {
	sat, err := h.prop.Satellite(id)
	if err != nil {
		return stateMessage{}, err
	}
	t := h.now().UTC()
	pos, err := sat.At(t, frame, math.NaN())
	if err != nil {
		return stateMessage{}, err
	}
	return stateMessage{
		Type:      "state",
		T:         t,
		TsinceMin: pos.Tsince,
		P:         [3]float64{pos.Position.X, pos.Position.Y, pos.Position.Z},
		V:         [3]float64{pos.Velocity.X, pos.Velocity.Y, pos.Velocity.Z},
		Warning:   pos.Warning,
	}, nil
}
