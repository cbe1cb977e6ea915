package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	controlCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "control",
			Name:      "commands_total",
			Help:      "Control utility invocations by operation and resolved exit code.",
		},
		[]string{"op", "node", "code"},
	)
	controlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridctl",
			Subsystem: "control",
			Name:      "command_duration_seconds",
			Help:      "Control utility invocation duration in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"op", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, controlCommands, controlDuration)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordControlCommand counts one control utility run. code is the resolved
// exit code; channel failures are recorded with code -1.
func RecordControlCommand(op, node string, code int, duration time.Duration) {
	RegisterMetrics()
	controlCommands.WithLabelValues(op, node, strconv.Itoa(code)).Inc()
	controlDuration.WithLabelValues(op, strconv.FormatBool(code == 0)).Observe(duration.Seconds())
}
