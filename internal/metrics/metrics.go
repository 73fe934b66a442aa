package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_searches_total",
			Help: "Event searches run, by kind (transit, elevation, profile).",
		},
		[]string{"kind"},
	)

	searchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_search_duration_seconds",
			Help:    "Event search duration in seconds.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"kind"},
	)

	ephemerisCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_ephemeris_cache_total",
			Help: "Ephemeris position cache lookups, by result.",
		},
		[]string{"result"},
	)

	scheduleEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_schedule_entries",
			Help: "Events currently held in the rolling schedule.",
		},
	)

	scheduleCutoversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_schedule_cutovers_total",
			Help: "Schedule rebuilds triggered by configuration changes.",
		},
	)

	scheduleGracePeriod = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_schedule_grace_period_active",
			Help: "1 while a schedule rebuild serves stale reads, else 0.",
		},
	)

	scheduleBuildErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_schedule_build_errors_total",
			Help: "Per-target schedule generation failures.",
		},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_tle_fetches_total",
			Help: "TLE set fetch attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	tleEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_tle_entries",
			Help: "Satellites in the active TLE set.",
		},
	)

	tleAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_tle_age_seconds",
			Help: "Age of the active TLE set since fetch.",
		},
	)

	rfiScanSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meridian_rfi_scan_duration_seconds",
			Help:    "Satellite interference scan duration in seconds.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		},
	)

	rfiEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_rfi_events_total",
			Help: "Satellite interference events found across all scans.",
		},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_stream_clients",
			Help: "Connected SSE stream clients.",
		},
	)

	streamRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_stream_rejected_total",
			Help: "SSE connections rejected, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		searchesTotal,
		searchDurationSeconds,
		ephemerisCacheTotal,
		scheduleEntries,
		scheduleCutoversTotal,
		scheduleGracePeriod,
		scheduleBuildErrorsTotal,
		tleFetchesTotal,
		tleEntries,
		tleAgeSeconds,
		rfiScanSeconds,
		rfiEventsTotal,
		streamClients,
		streamRejectedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearch records one finished event search of the given kind.
func ObserveSearch(kind string, d time.Duration) {
	searchesTotal.WithLabelValues(kind).Inc()
	searchDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// EphemerisCacheHit counts a position served from the LRU cache.
func EphemerisCacheHit() { ephemerisCacheTotal.WithLabelValues("hit").Inc() }

// EphemerisCacheMiss counts a position computed from the series.
func EphemerisCacheMiss() { ephemerisCacheTotal.WithLabelValues("miss").Inc() }

// SetScheduleEntries publishes the size of the rolling schedule.
func SetScheduleEntries(n int) { scheduleEntries.Set(float64(n)) }

// ScheduleCutover counts one schedule rebuild.
func ScheduleCutover() { scheduleCutoversTotal.Inc() }

// SetScheduleGracePeriodActive flags an in-progress rebuild.
func SetScheduleGracePeriodActive(active bool) {
	if active {
		scheduleGracePeriod.Set(1)
	} else {
		scheduleGracePeriod.Set(0)
	}
}

// ScheduleBuildError counts a target whose schedule generation failed.
func ScheduleBuildError() { scheduleBuildErrorsTotal.Inc() }

// TLEFetchSucceeded counts a completed TLE download.
func TLEFetchSucceeded() { tleFetchesTotal.WithLabelValues("success").Inc() }

// TLEFetchFailed counts a TLE download that exhausted its retries.
func TLEFetchFailed() { tleFetchesTotal.WithLabelValues("failure").Inc() }

// SetTLEEntries publishes the active TLE set size.
func SetTLEEntries(n int) { tleEntries.Set(float64(n)) }

// SetTLEAgeSeconds publishes the active TLE set age.
func SetTLEAgeSeconds(v float64) { tleAgeSeconds.Set(v) }

// ObserveRFIScan records one finished interference scan.
func ObserveRFIScan(d time.Duration, events int) {
	rfiScanSeconds.Observe(d.Seconds())
	rfiEventsTotal.Add(float64(events))
}

// StreamClientConnected tracks an accepted SSE client.
func StreamClientConnected() { streamClients.Inc() }

// StreamClientDisconnected tracks a departed SSE client.
func StreamClientDisconnected() { streamClients.Dec() }

// StreamRejected counts a refused SSE connection.
func StreamRejected(reason string) { streamRejectedTotal.WithLabelValues(reason).Inc() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
