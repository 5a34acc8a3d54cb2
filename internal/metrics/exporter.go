package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const exporterSubsystem = "exporter"

// BridgeMetrics describes the exporter itself rather than the mesh.
type BridgeMetrics struct {
	FramesReceived *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	HeartbeatsSent prometheus.Counter
	LinkUp         prometheus.Gauge
	LastFrame      prometheus.Gauge

	now func() time.Time
}

func NewBridgeMetrics(reg prometheus.Registerer, namespace string) *BridgeMetrics {
	factory := promauto.With(reg)
	return &BridgeMetrics{
		FramesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporterSubsystem,
				Name:      "frames_received_total",
				Help:      "Envelopes received from the device, by payload kind.",
			},
			[]string{"kind"},
		),
		DecodeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporterSubsystem,
				Name:      "decode_failures_total",
				Help:      "Routed packets whose payload could not be decoded, by application port.",
			},
			[]string{"port"},
		),
		HeartbeatsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporterSubsystem,
				Name:      "heartbeats_sent_total",
				Help:      "Heartbeats queued for the device.",
			},
		),
		LinkUp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: exporterSubsystem,
				Name:      "link_up",
				Help:      "1 while the device link is established.",
			},
		),
		LastFrame: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: exporterSubsystem,
				Name:      "last_frame_timestamp_seconds",
				Help:      "Unix time of the last envelope received from the device.",
			},
		),
		now: time.Now,
	}
}

func (m *BridgeMetrics) FrameReceived(kind string) {
	m.FramesReceived.WithLabelValues(kind).Inc()
	m.LastFrame.Set(float64(m.now().UnixNano()) / 1e9)
}

func (m *BridgeMetrics) DecodeFailed(port string) {
	m.DecodeFailures.WithLabelValues(port).Inc()
}

func (m *BridgeMetrics) HeartbeatQueued() {
	m.HeartbeatsSent.Inc()
}

func (m *BridgeMetrics) SetLinkUp(up bool) {
	if up {
		m.LinkUp.Set(1)
		return
	}
	m.LinkUp.Set(0)
}
