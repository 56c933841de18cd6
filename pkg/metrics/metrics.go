package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Requests made to the REST backend, by method and status code ("error" for transport failures).
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uninotes_upstream_requests_total",
			Help: "Requests sent to the REST backend",
		},
		[]string{"method", "status"},
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uninotes_upstream_request_seconds",
			Help:    "Latency of REST backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	GuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uninotes_guard_decisions_total",
			Help: "Route guard outcomes",
		},
		[]string{"outcome"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "uninotes_rate_limited_total",
			Help: "Requests rejected by the login rate limiter",
		},
	)

	StorageOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uninotes_storage_operations_total",
			Help: "Durable storage operations by driver, op and result",
		},
		[]string{"driver", "op", "result"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uninotes_events_published_total",
			Help: "Events published on the bus by type",
		},
		[]string{"type"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "uninotes_active_sessions",
			Help: "Session stores currently cached in memory",
		},
	)

	JanitorRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uninotes_janitor_runs_total",
			Help: "Janitor sweeps by result",
		},
		[]string{"result"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			UpstreamRequests,
			UpstreamLatency,
			GuardDecisions,
			RateLimited,
			StorageOps,
			EventsPublished,
			ActiveSessions,
			JanitorRuns,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StorageResult records one storage operation.
func StorageResult(driver, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StorageOps.WithLabelValues(driver, op, result).Inc()
}
