package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

var (
	AuthOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpress_auth_operations_total",
			Help: "Total number of session lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	SessionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpress_session_cache_lookups_total",
			Help: "Total number of session cache lookups by result",
		},
		[]string{"result"},
	)

	GeoLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkpress_geo_lookup_duration_seconds",
			Help:    "Duration of IP geolocation lookups in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"outcome"},
	)
)

// ObserveOperation records one operation. Client mistakes (bad or expired
// tokens) count as failures, anything else that went wrong counts as an error.
func ObserveOperation(operation string, err error, clientFault bool) {
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case clientFault:
		outcome = OutcomeFailure
	default:
		outcome = OutcomeError
	}
	AuthOperations.WithLabelValues(operation, outcome).Inc()
}
