package rcon

import (
	"time"

	"github.com/danmuck/rconctl/internal/protocol/frame"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK = "ok"
)

// Metrics records client activity. A nil *Metrics records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	framesReceived *prometheus.CounterVec
	connects       *prometheus.CounterVec
	pendingFrames  prometheus.Gauge
}

// NewMetrics registers the client collectors on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "rconctl"
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rcon",
			Name:      "requests_total",
			Help:      "RCON requests by message type and outcome.",
		}, []string{"type", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rcon",
			Name:      "request_duration_seconds",
			Help:      "Time from write to correlated answer.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rcon",
			Name:      "frames_received_total",
			Help:      "Frames decoded by the background reader.",
		}, []string{"success"}),
		connects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rcon",
			Name:      "connects_total",
			Help:      "Connection open attempts by result.",
		}, []string{"result"}),
		pendingFrames: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rcon",
			Name:      "pending_frames",
			Help:      "Received frames not yet claimed.",
		}),
	}
}

func (m *Metrics) observeRequest(typ frame.MessageType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(typ.String(), outcome).Inc()
	if outcome == outcomeOK {
		m.duration.WithLabelValues(typ.String()).Observe(d.Seconds())
	}
}

func (m *Metrics) frameReceived(success bool) {
	if m == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	m.framesReceived.WithLabelValues(label).Inc()
}

func (m *Metrics) connectAttempt(result string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(result).Inc()
}

func (m *Metrics) pendingAdd(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.pendingFrames.Add(float64(delta))
}
