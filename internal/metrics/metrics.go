// Package metrics exposes Prometheus instrumentation for recording sessions,
// record writes and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/recorder"
)

// Manager owns the solvelog metrics. It implements recorder.Observer and
// persist.FlushObserver.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	eventsAccepted    prometheus.Counter
	batchesRejected   *prometheus.CounterVec
	candidatesDropped *prometheus.CounterVec
	queueDepth        prometheus.Gauge

	flushes       *prometheus.CounterVec
	flushLatency  prometheus.Histogram
	flushedEvents prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var (
	_ recorder.Observer     = (*Manager)(nil)
	_ persist.FlushObserver = (*Manager)(nil)
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the metric namespace. Defaults to "solvelog".
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the latency buckets, in seconds.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// New creates and registers the metrics.
func New(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "solvelog",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)

	m.eventsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "recorder",
		Name:      "events_accepted_total",
		Help:      "Events inserted into session logs.",
	})
	m.batchesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "recorder",
		Name:      "batches_rejected_total",
		Help:      "Candidate batches refused as a whole, by reason.",
	}, []string{"reason"})
	m.candidatesDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "recorder",
		Name:      "candidates_dropped_total",
		Help:      "Candidate events dropped for failing validation, by kind.",
	}, []string{"kind"})
	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "recorder",
		Name:      "queue_depth",
		Help:      "Candidate batches waiting to be applied.",
	})

	m.flushes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "persist",
		Name:      "flushes_total",
		Help:      "Record writes, by result (ok, error, superseded).",
	}, []string{"result"})
	m.flushLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "persist",
		Name:      "flush_duration_seconds",
		Help:      "Duration of record writes.",
		Buckets:   m.histogramBuckets,
	})
	m.flushedEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "persist",
		Name:      "last_flush_events",
		Help:      "Log length of the most recent successful write.",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by route and status code.",
	}, []string{"route", "code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by route.",
		Buckets:   m.histogramBuckets,
	}, []string{"route"})

	return m
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EventsAccepted implements recorder.Observer.
func (m *Manager) EventsAccepted(n int) {
	m.eventsAccepted.Add(float64(n))
}

// BatchRejected implements recorder.Observer.
func (m *Manager) BatchRejected(reason recorder.RejectReason) {
	m.batchesRejected.WithLabelValues(string(reason)).Inc()
}

// CandidateDropped implements recorder.Observer.
func (m *Manager) CandidateDropped(err *event.ValidationError) {
	kind := string(err.Kind)
	if !err.Kind.Valid() {
		kind = "unknown"
	}
	m.candidatesDropped.WithLabelValues(kind).Inc()
}

// QueueDepth implements recorder.Observer.
func (m *Manager) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// Flushed implements persist.FlushObserver.
func (m *Manager) Flushed(res persist.Result) {
	switch {
	case res.Superseded:
		m.flushes.WithLabelValues("superseded").Inc()
		return
	case res.Err != nil:
		m.flushes.WithLabelValues("error").Inc()
	default:
		m.flushes.WithLabelValues("ok").Inc()
		m.flushedEvents.Set(float64(res.Events))
	}
	m.flushLatency.Observe(res.Duration.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Manager) ObserveRequest(route string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
