package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BookingsTotal          *prometheus.CounterVec
	EmergencyBookingsTotal prometheus.Counter
	MaterializationsTotal  prometheus.Counter
	MaterializeDuration    prometheus.Histogram
	ScoringSkippedTotal    prometheus.Counter

	WSConnections     prometheus.Gauge
	WSDroppedPushes   prometheus.Counter
	WSEventsSentTotal *prometheus.CounterVec

	DBQueryDuration *prometheus.HistogramVec
	DBConnections   prometheus.Gauge

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter
}

func NewCollector(serviceName string) *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BookingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "queue",
			Name:      "bookings_total",
			Help:      "Total bookings by computed severity category.",
		}, []string{"severity"}),

		EmergencyBookingsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "queue",
			Name:      "emergency_bookings_total",
			Help:      "Total bookings made through the emergency path.",
		}),

		MaterializationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "queue",
			Name:      "materializations_total",
			Help:      "Total queue snapshots built.",
		}),

		MaterializeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "queue",
			Name:      "materialize_duration_seconds",
			Help:      "Queue snapshot build latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		ScoringSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "queue",
			Name:      "scoring_skipped_total",
			Help:      "Queue entries kept with stale scores because rescoring failed.",
		}),

		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Current number of open websocket connections.",
		}),

		WSDroppedPushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ws",
			Name:      "dropped_pushes_total",
			Help:      "Events dropped because a client send buffer was full. Alert if growing.",
		}),

		WSEventsSentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ws",
			Name:      "events_sent_total",
			Help:      "Total events broadcast by event type.",
		}, []string{"type"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation", "table"}),

		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Current number of open database connections.",
		}),

		AuditEntriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
