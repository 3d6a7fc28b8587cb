package console

import (
	"github.com/prometheus/client_golang/prometheus"

	"contact-chat-lab/internal/feed"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeStale    = "stale"
)

// Metrics counts console operations. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	frames     prometheus.Counter
	feedEvents *prometheus.CounterVec
	feedState  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatlab",
			Name:      "operations_total",
			Help:      "Console operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatlab",
			Name:      "feed_frames_total",
			Help:      "Websocket frames received by the console feed.",
		}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatlab",
			Name:      "feed_events_total",
			Help:      "Websocket lifecycle events by kind.",
		}, []string{"event"}),
		feedState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatlab",
			Name:      "feed_state",
			Help:      "Feed connection state: 0 idle, 1 connecting, 2 open, 3 closed, 4 failed.",
		}),
	}
	reg.MustRegister(m.operations, m.frames, m.feedEvents, m.feedState)
	return m
}

func (m *Metrics) operation(name, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) frame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

func (m *Metrics) feedEvent(event string) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(event).Inc()
}

// ObserveFeedState is meant for feed.WithStateHook.
func (m *Metrics) ObserveFeedState(s feed.State) {
	if m == nil {
		return
	}
	m.feedState.Set(float64(s))
}
