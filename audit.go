package broker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coregx/broker/model"
)

// AuditSink receives the audit trail of consumption attempts and sweeps.
//
// The trail is an export only: the broker never reads it back.
// adapters/relica provides a SQL implementation.
type AuditSink interface {
	// RecordConsumption is called for every consumption attempt.
	RecordConsumption(ctx context.Context, record model.ConsumptionRecord) error

	// RecordSweep is called for every topic visited by a sweep.
	RecordSweep(ctx context.Context, record model.SweepRecord) error
}

// NoOpAuditSink is a no-op implementation of AuditSink.
// Use this when no audit trail is needed.
type NoOpAuditSink struct{}

// RecordConsumption does nothing.
func (n *NoOpAuditSink) RecordConsumption(_ context.Context, _ model.ConsumptionRecord) error {
	return nil
}

// RecordSweep does nothing.
func (n *NoOpAuditSink) RecordSweep(_ context.Context, _ model.SweepRecord) error {
	return nil
}

// LoggingAuditSink is a simple implementation that logs audit records.
type LoggingAuditSink struct {
	logger Logger
}

// NewLoggingAuditSink creates a new LoggingAuditSink.
func NewLoggingAuditSink(logger Logger) *LoggingAuditSink {
	return &LoggingAuditSink{logger: logger}
}

// RecordConsumption logs a consumption attempt.
func (n *LoggingAuditSink) RecordConsumption(_ context.Context, r model.ConsumptionRecord) error {
	if r.IsSuccess() {
		n.logger.Infof("Consumption: topic=%s, message_id=%s, consumer=%s, outcome=%s",
			r.Topic, r.MessageID, r.Consumer, r.Outcome)
		return nil
	}
	n.logger.Warnf("Consumption failed: topic=%s, message_id=%s, consumer=%s, outcome=%s, reason=%s",
		r.Topic, r.MessageID, r.Consumer, r.Outcome, r.Reason)
	return nil
}

// RecordSweep logs a sweep summary.
func (n *LoggingAuditSink) RecordSweep(_ context.Context, r model.SweepRecord) error {
	n.logger.Infof("Sweep: topic=%s, pending=%d, expired=%d, redelivered=%d, exhausted=%d, pruned=%d",
		r.Topic, r.Pending, r.Expired, r.Redelivered, r.Exhausted, r.Pruned)
	return nil
}

// auditEntry carries exactly one of its records.
type auditEntry struct {
	consumption *model.ConsumptionRecord
	sweep       *model.SweepRecord
}

// auditWriter forwards records to the sink from a single background goroutine
// so that consumers never wait on sink I/O. A full buffer drops the record.
type auditWriter struct {
	sink    AuditSink
	entries chan auditEntry
	logger  Logger
	metrics MetricsRecorder
	group   errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func newAuditWriter(sink AuditSink, buffer int, logger Logger, metrics MetricsRecorder) *auditWriter {
	w := &auditWriter{
		sink:    sink,
		entries: make(chan auditEntry, buffer),
		logger:  logger,
		metrics: metrics,
	}
	w.group.Go(func() error {
		for entry := range w.entries {
			w.write(entry)
		}
		return nil
	})
	return w
}

func (w *auditWriter) consumption(r model.ConsumptionRecord) {
	w.enqueue(auditEntry{consumption: &r})
}

func (w *auditWriter) sweep(r model.SweepRecord) {
	w.enqueue(auditEntry{sweep: &r})
}

func (w *auditWriter) enqueue(entry auditEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}
	select {
	case w.entries <- entry:
	default:
		w.metrics.AuditDropped()
		w.logger.Warnf("Audit buffer full, dropping record")
	}
}

func (w *auditWriter) write(entry auditEntry) {
	ctx := context.Background()
	switch {
	case entry.consumption != nil:
		if err := w.sink.RecordConsumption(ctx, *entry.consumption); err != nil {
			w.logger.Errorf("Failed to record consumption of message %s: %v", entry.consumption.MessageID, err)
		}
	case entry.sweep != nil:
		if err := w.sink.RecordSweep(ctx, *entry.sweep); err != nil {
			w.logger.Errorf("Failed to record sweep of topic %s: %v", entry.sweep.Topic, err)
		}
	}
}

// close flushes buffered records and stops the writer.
func (w *auditWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.entries)
	w.mu.Unlock()

	_ = w.group.Wait()
}
