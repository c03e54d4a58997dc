package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP traffic and for the
// polling/broadcast pipeline.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	pollCycles      prometheus.Counter
	pollDuration    prometheus.Histogram
	refreshFailures *prometheus.CounterVec
	eventsEmitted   *prometheus.CounterVec
	subscribers     prometheus.Gauge
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chirpwatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chirpwatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chirpwatch",
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chirpwatch",
			Subsystem: "poll",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of a full poll cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		refreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chirpwatch",
			Subsystem: "poll",
			Name:      "refresh_failures_total",
			Help:      "Per-account refresh attempts that ended in an error.",
		}, []string{"username"}),
		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chirpwatch",
			Subsystem: "broadcast",
			Name:      "events_emitted_total",
			Help:      "Live-update events fanned out, by event type.",
		}, []string{"event"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chirpwatch",
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Currently connected live-update subscribers.",
		}),
	}

	collectors := []prometheus.Collector{
		c.requestDuration,
		c.requestTotal,
		c.pollCycles,
		c.pollDuration,
		c.refreshFailures,
		c.eventsEmitted,
		c.subscribers,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObservePollCycle records one completed poll cycle.
func (c *Collector) ObservePollCycle(duration time.Duration) {
	c.pollCycles.Inc()
	c.pollDuration.Observe(duration.Seconds())
}

// IncRefreshFailure counts a failed per-account refresh.
func (c *Collector) IncRefreshFailure(username string) {
	c.refreshFailures.WithLabelValues(username).Inc()
}

// IncEventEmitted counts one fanned-out live-update event.
func (c *Collector) IncEventEmitted(event string) {
	c.eventsEmitted.WithLabelValues(event).Inc()
}

// SetSubscribers records the current subscriber count.
func (c *Collector) SetSubscribers(n int) {
	c.subscribers.Set(float64(n))
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so instrumented SSE responses can
// still stream.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
