package observability

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring service health and performance
var (
	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_ingested_total",
			Help: "Total number of audit events accepted for storage",
		},
		[]string{"checkpoint", "status"},
	)

	ReconciliationReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_reports_total",
			Help: "Total number of reconciliation reports generated",
		},
		[]string{"overall_status"},
	)

	DiscrepanciesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discrepancies_detected_total",
			Help: "Total number of discrepancy findings emitted",
		},
		[]string{"type", "severity"},
	)

	EventStoreRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_store_request_duration_seconds",
			Help:    "Duration of event store gateway operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)
)

// RegisterMetrics registers all Prometheus metrics
func RegisterMetrics() {
	prometheus.MustRegister(EventsIngestedTotal)
	prometheus.MustRegister(ReconciliationReportsTotal)
	prometheus.MustRegister(DiscrepanciesDetectedTotal)
	prometheus.MustRegister(EventStoreRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}
