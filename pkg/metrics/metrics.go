package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	SessionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ice_sessions_total",
			Help: "Total number of stored sessions",
		},
	)

	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ice_instances_total",
			Help: "Total number of stored instances by status",
		},
		[]string{"status"},
	)

	InstancesRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ice_instances_registered_total",
			Help: "Total number of accepted instance registrations",
		},
	)

	CascadeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ice_cascade_failures_total",
			Help: "Total number of instances that could not be removed during a session delete",
		},
	)

	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ice_validation_failures_total",
			Help: "Total number of rejected documents by resource",
		},
		[]string{"resource"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ice_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ice_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(InstancesRegistered)
	prometheus.MustRegister(CascadeFailures)
	prometheus.MustRegister(ValidationFailures)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
