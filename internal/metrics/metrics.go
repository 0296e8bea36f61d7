package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine operations, as used for the operation label.
const (
	OpStart      = "start"
	OpGetStatus  = "get_status"
	OpUpdateLogs = "update_logs"
	OpCleanup    = "cleanup"
	OpPull       = "pull"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

var (
	EngineOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podrunner_engine_operations_total",
			Help: "Total number of container engine operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	EngineOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "podrunner_engine_operation_duration_seconds",
			Help:    "Container engine operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ActivationStatusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podrunner_activation_status_total",
			Help: "Total number of status queries by translated activation status",
		},
		[]string{"status"},
	)

	LogLinesForwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "podrunner_log_lines_forwarded_total",
			Help: "Total number of container log lines forwarded to activation logs",
		},
	)
)

func init() {
	prometheus.MustRegister(EngineOperationsTotal)
	prometheus.MustRegister(EngineOperationDuration)
	prometheus.MustRegister(ActivationStatusTotal)
	prometheus.MustRegister(LogLinesForwarded)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
