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
			Namespace: "rconctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total bridge HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rconctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Bridge HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	bridgeCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rconctl",
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Commands relayed by the bridge, by failure kind (empty on success).",
		},
		[]string{"node", "failure"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bridgeCommands)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBridgeCommand(node, failure string) {
	RegisterMetrics()
	bridgeCommands.WithLabelValues(node, failure).Inc()
}
