// Package prometheus implements broker.MetricsRecorder with Prometheus collectors.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coregx/broker"
	"github.com/coregx/broker/model"
)

// Recorder exports broker events as Prometheus metrics.
type Recorder struct {
	published      *prometheus.CounterVec
	consumed       *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	auditDropped   prometheus.Counter
	sweeps         *prometheus.CounterVec
	pending        *prometheus.GaugeVec
	expired        *prometheus.GaugeVec
	redelivered    *prometheus.CounterVec
	exhausted      *prometheus.GaugeVec
	pruned         *prometheus.CounterVec
	lastSweepEpoch *prometheus.GaugeVec
}

var _ broker.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the broker collectors with reg.
// Use prometheus.DefaultRegisterer for the global registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_messages_published_total",
			Help: "Total number of messages appended to a topic",
		}, []string{"topic"}),
		consumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_consume_attempts_total",
			Help: "Total number of consumption attempts by outcome",
		}, []string{"topic", "outcome"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_deliveries_dropped_total",
			Help: "Total number of fan-out deliveries rejected by a full dispatcher",
		}, []string{"topic"}),
		auditDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "broker_audit_records_dropped_total",
			Help: "Total number of audit records rejected by a full buffer",
		}),
		sweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_sweeps_total",
			Help: "Total number of topic sweeps",
		}, []string{"topic"}),
		pending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broker_pending_messages",
			Help: "Unconsumed messages seen by the latest sweep",
		}, []string{"topic"}),
		expired: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broker_expired_messages",
			Help: "Expired unconsumed messages seen by the latest sweep",
		}, []string{"topic"}),
		redelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_redeliveries_total",
			Help: "Total number of messages fanned out again by sweeps",
		}, []string{"topic"}),
		exhausted: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broker_exhausted_messages",
			Help: "Pending messages out of delivery attempts at the latest sweep",
		}, []string{"topic"}),
		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_pruned_messages_total",
			Help: "Total number of consumed messages dropped by retention",
		}, []string{"topic"}),
		lastSweepEpoch: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broker_last_sweep_timestamp_seconds",
			Help: "Unix time of the latest sweep",
		}, []string{"topic"}),
	}
}

// MessagePublished implements broker.MetricsRecorder.
func (r *Recorder) MessagePublished(topic string) {
	r.published.WithLabelValues(topic).Inc()
}

// ConsumeAttempt implements broker.MetricsRecorder.
func (r *Recorder) ConsumeAttempt(topic string, outcome model.ConsumptionOutcome) {
	r.consumed.WithLabelValues(topic, string(outcome)).Inc()
}

// DeliveryDropped implements broker.MetricsRecorder.
func (r *Recorder) DeliveryDropped(topic string) {
	r.dropped.WithLabelValues(topic).Inc()
}

// AuditDropped implements broker.MetricsRecorder.
func (r *Recorder) AuditDropped() {
	r.auditDropped.Inc()
}

// SweepCompleted implements broker.MetricsRecorder.
func (r *Recorder) SweepCompleted(report broker.SweepReport) {
	r.sweeps.WithLabelValues(report.Topic).Inc()
	r.pending.WithLabelValues(report.Topic).Set(float64(report.Pending))
	r.expired.WithLabelValues(report.Topic).Set(float64(report.Expired))
	r.exhausted.WithLabelValues(report.Topic).Set(float64(report.Exhausted))
	r.redelivered.WithLabelValues(report.Topic).Add(float64(report.Redelivered))
	r.pruned.WithLabelValues(report.Topic).Add(float64(report.Pruned))
	r.lastSweepEpoch.WithLabelValues(report.Topic).Set(float64(report.SweptAt.Unix()))
}
