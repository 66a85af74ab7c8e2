package broker

import "github.com/coregx/broker/model"

// MetricsRecorder receives broker events for instrumentation.
// adapters/prometheus provides a Prometheus implementation.
// Implementations must be safe for concurrent use and must not block.
type MetricsRecorder interface {
	// MessagePublished is called once per message appended to a topic.
	MessagePublished(topic string)

	// ConsumeAttempt is called once per consumption attempt with its outcome.
	ConsumeAttempt(topic string, outcome model.ConsumptionOutcome)

	// DeliveryDropped is called when a fan-out task is rejected by a full dispatcher.
	DeliveryDropped(topic string)

	// SweepCompleted is called once per topic visited by a sweep.
	SweepCompleted(report SweepReport)

	// AuditDropped is called when an audit record is rejected by a full buffer.
	AuditDropped()
}

// NoopMetrics is a MetricsRecorder that records nothing.
type NoopMetrics struct{}

func (NoopMetrics) MessagePublished(string) {}

func (NoopMetrics) ConsumeAttempt(string, model.ConsumptionOutcome) {}

func (NoopMetrics) DeliveryDropped(string) {}

func (NoopMetrics) SweepCompleted(SweepReport) {}

func (NoopMetrics) AuditDropped() {}
