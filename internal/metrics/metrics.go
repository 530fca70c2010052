package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tleprop_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tleprop_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tleprop_propagation_duration_seconds",
			Help:    "Wall time of one batch propagation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tleprop_propagations_total",
			Help: "Satellite propagations by outcome.",
		},
		[]string{"outcome"},
	)

	initFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tleprop_init_failures_total",
			Help: "Element sets rejected while building propagator state, by reason.",
		},
		[]string{"reason"},
	)

	catalogSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tleprop_catalog_satellites",
			Help: "Element sets in the loaded catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tleprop_catalog_age_seconds",
			Help: "Seconds since the loaded catalog was fetched.",
		},
	)

	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tleprop_active_streams",
			Help: "Open websocket state streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationDurationSeconds,
		propagationsTotal,
		initFailuresTotal,
		catalogSatellites,
		catalogAgeSeconds,
		activeStreams,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcomes recorded by RecordPropagation.
const (
	OutcomeOK      = "ok"
	OutcomeWarning = "warning"
	OutcomeError   = "error"
)

// RecordPropagation records one batch: its duration and per-satellite
// outcomes. Warnings are successful propagations that carried a Kepler
// convergence warning.
func RecordPropagation(d time.Duration, ok, warnings, failed int) {
	propagationDurationSeconds.Observe(d.Seconds())
	propagationsTotal.WithLabelValues(OutcomeOK).Add(float64(ok))
	propagationsTotal.WithLabelValues(OutcomeWarning).Add(float64(warnings))
	propagationsTotal.WithLabelValues(OutcomeError).Add(float64(failed))
}

// RecordInitFailure counts an element set that could not be initialized.
// reason should be a small fixed vocabulary such as "elements" or "range".
func RecordInitFailure(reason string) {
	initFailuresTotal.WithLabelValues(reason).Inc()
}

// SetCatalogSize sets the number of element sets in the loaded catalog.
func SetCatalogSize(n int) { catalogSatellites.Set(float64(n)) }

// SetCatalogAge sets the age of the loaded catalog.
func SetCatalogAge(age time.Duration) { catalogAgeSeconds.Set(age.Seconds()) }

// StreamOpened and StreamClosed track open websocket streams.
func StreamOpened() { activeStreams.Inc() }

func StreamClosed() { activeStreams.Dec() }

// exactRoutes are label values passed through unchanged.
var exactRoutes = map[string]bool{
	"/":                    true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/parse":    true,
	"/api/v1/tle/metadata": true,
	"/api/v1/tle/fetch":    true,
	"/api/v1/propagate":    true,
	"/api/v1/frames":       true,
}

// prefixRoutes collapse a trailing catalog number into one label.
var prefixRoutes = []string{
	"/api/v1/satellites/",
	"/api/v1/stream/",
}

// normalizeRoute maps a request path onto a bounded label set so scanners
// and per-satellite URLs cannot blow up series cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	for _, prefix := range prefixRoutes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		id, sub, nested := strings.Cut(rest, "/")
		if !isCatalogID(id) {
			break
		}
		if !nested {
			return prefix + "{norad_id}"
		}
		if prefix == "/api/v1/satellites/" && sub == "passes" {
			return prefix + "{norad_id}/passes"
		}
		break
	}
	return "other"
}

// isCatalogID accepts decimal and Alpha-5 catalog numbers.
func isCatalogID(s string) bool {
	if s == "" || len(s) > 9 {
		return false
	}
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}
	if len(s) != 5 || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying ResponseWriter does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
