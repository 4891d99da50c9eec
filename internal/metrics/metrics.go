// Package metrics holds the Prometheus collectors of the gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	BackendRequests      *prometheus.CounterVec
	BackendDuration      *prometheus.HistogramVec
	BookingsCreated      prometheus.Counter
	BookingsCancelled    prometheus.Counter
	BookingConflicts     *prometheus.CounterVec
	AvailabilityDegraded prometheus.Counter
	CacheLookups         *prometheus.CounterVec
	ActiveSessions       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canchita_http_requests_total",
			Help: "HTTP requests served, by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canchita_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canchita_backend_requests_total",
			Help: "Calls to the legacy backend, by endpoint and status (0 = transport error).",
		}, []string{"endpoint", "status"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canchita_backend_request_duration_seconds",
			Help:    "Legacy backend latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		BookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canchita_bookings_created_total",
			Help: "Bookings accepted by the backend.",
		}),
		BookingsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canchita_bookings_cancelled_total",
			Help: "Bookings cancelled.",
		}),
		BookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canchita_booking_conflicts_total",
			Help: "Rejected double bookings, by where the conflict was detected.",
		}, []string{"stage"}),
		AvailabilityDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canchita_availability_degraded_total",
			Help: "Availability answers served from the fallback catalog.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canchita_cache_lookups_total",
			Help: "In-process cache lookups, by cache and result.",
		}, []string{"cache", "result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canchita_active_sessions",
			Help: "Sessions held in memory by this instance.",
		}),
	}

	m.Registry.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.BackendRequests, m.BackendDuration,
		m.BookingsCreated, m.BookingsCancelled, m.BookingConflicts,
		m.AvailabilityDegraded, m.CacheLookups, m.ActiveSessions,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveBackend matches external.RequestObserver.
func (m *Metrics) ObserveBackend(endpoint string, status int, elapsed time.Duration) {
	m.BackendRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.BackendDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CacheHit records a lookup on the named cache.
func (m *Metrics) CacheHit(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}
