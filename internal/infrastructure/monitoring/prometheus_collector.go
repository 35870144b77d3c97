package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports room, session and negotiation telemetry.
type PrometheusCollector struct {
	roomsActive         prometheus.Gauge
	participantsActive  prometheus.Gauge
	sessionsStarted     prometheus.Counter
	sessionsEnded       prometheus.Counter
	signalMessages      *prometheus.CounterVec
	negotiationDuration prometheus.Histogram
	negotiationsFailed  prometheus.Counter
	contributionsTotal  prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gdroom_rooms_active",
			Help: "Number of rooms currently open",
		}),
		participantsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gdroom_participants_active",
			Help: "Number of participants with an established connection",
		}),
		sessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gdroom_sessions_started_total",
			Help: "Total discussion sessions started",
		}),
		sessionsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gdroom_sessions_ended_total",
			Help: "Total discussion sessions ended",
		}),
		signalMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gdroom_signal_messages_total",
			Help: "Signal messages handled by hosts, by message type",
		}, []string{"type"}),
		negotiationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gdroom_negotiation_duration_seconds",
			Help:    "Time from offer sent to answer applied",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		negotiationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gdroom_negotiations_failed_total",
			Help: "Negotiations that timed out or errored",
		}),
		contributionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gdroom_contributions_total",
			Help: "Speaking turns detected across all sessions",
		}),
	}
}

func (c *PrometheusCollector) RoomCreated() {
	c.roomsActive.Inc()
}

func (c *PrometheusCollector) RoomClosed() {
	c.roomsActive.Dec()
}

func (c *PrometheusCollector) ParticipantConnected() {
	c.participantsActive.Inc()
}

func (c *PrometheusCollector) ParticipantDisconnected() {
	c.participantsActive.Dec()
}

func (c *PrometheusCollector) SessionStarted() {
	c.sessionsStarted.Inc()
}

func (c *PrometheusCollector) SessionEnded() {
	c.sessionsEnded.Inc()
}

func (c *PrometheusCollector) SignalMessage(messageType string) {
	c.signalMessages.WithLabelValues(messageType).Inc()
}

func (c *PrometheusCollector) NegotiationCompleted(d time.Duration) {
	c.negotiationDuration.Observe(d.Seconds())
}

func (c *PrometheusCollector) NegotiationFailed() {
	c.negotiationsFailed.Inc()
}

func (c *PrometheusCollector) ContributionRecorded() {
	c.contributionsTotal.Inc()
}
