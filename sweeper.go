package broker

import (
	"context"
	"time"

	"github.com/coregx/broker/model"
)

// SweepPolicy decides what a sweep does with pending messages that are due for redelivery.
type SweepPolicy int

const (
	// SweepRedeliver fans due messages out again, paced by the retry strategy.
	SweepRedeliver SweepPolicy = iota

	// SweepReportOnly counts due messages without delivering them.
	SweepReportOnly
)

// String implements fmt.Stringer.
func (p SweepPolicy) String() string {
	if p == SweepReportOnly {
		return "report"
	}
	return "redeliver"
}

// SweepReport summarizes one sweep of one topic.
//
// Pending counts every unconsumed message; Expired, Exhausted and Due
// partition the pending messages that were not left alone.
type SweepReport struct {
	Topic       string
	Pending     int // Unconsumed messages in the topic
	Expired     int // Pending messages past their TTL, never redelivered
	Exhausted   int // Pending messages that used up every delivery attempt
	Due         int // Pending messages whose retry delay elapsed
	Redelivered int // Due messages fanned out again to at least one subscriber
	Pruned      int // Consumed messages dropped by retention
	SweptAt     time.Time
}

// Record converts the report to its audit record.
func (r SweepReport) Record() model.SweepRecord {
	return model.SweepRecord{
		Topic:       r.Topic,
		Pending:     r.Pending,
		Expired:     r.Expired,
		Redelivered: r.Redelivered,
		Exhausted:   r.Exhausted,
		Pruned:      r.Pruned,
		SweptAt:     r.SweptAt,
	}
}

// ScheduleNotifications starts the periodic sweep in the background.
// It is idempotent; the loop stops when ctx is canceled or the broker is closed.
func (b *Broker) ScheduleNotifications(ctx context.Context) {
	b.scheduleOnce.Do(func() {
		b.loops.Add(1)
		go func() {
			defer b.loops.Done()
			b.Run(ctx)
		}()
	})
}

// Run runs the sweep loop until ctx is canceled or the broker is closed.
// The first sweep happens after the initial delay, then once per period.
//
// This method blocks; use ScheduleNotifications to run it in the background.
func (b *Broker) Run(ctx context.Context) {
	timer := time.NewTimer(b.sweepDelay)
	defer timer.Stop()

	b.logger.Infof("Broker sweep scheduled (delay=%v, period=%v, policy=%s)", b.sweepDelay, b.sweepPeriod, b.sweepPolicy)

	select {
	case <-ctx.Done():
		b.logger.Info("Broker sweep stopped")
		return
	case <-b.stop:
		b.logger.Info("Broker sweep stopped")
		return
	case <-timer.C:
		b.Sweep(ctx)
	}

	ticker := time.NewTicker(b.sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Broker sweep stopped")
			return
		case <-b.stop:
			b.logger.Info("Broker sweep stopped")
			return
		case <-ticker.C:
			b.Sweep(ctx)
		}
	}
}

// Sweep visits every registered topic once and returns one report per topic, sorted by name.
// It stops early, returning the reports so far, when ctx is canceled.
func (b *Broker) Sweep(ctx context.Context) []SweepReport {
	topics := b.topicSnapshot()
	reports := make([]SweepReport, 0, len(topics))

	for _, topic := range topics {
		if ctx.Err() != nil {
			break
		}

		report, err := b.sweepTopic(topic)
		if err != nil {
			b.logger.Errorf("Error sweeping topic %s: %v", topic.Name(), err)
			continue
		}
		reports = append(reports, report)

		b.metrics.SweepCompleted(report)
		b.audit.sweep(report.Record())
		if report.Pending > 0 || report.Pruned > 0 {
			b.logger.Infof("Sweep %s: pending=%d, expired=%d, exhausted=%d, due=%d, redelivered=%d, pruned=%d",
				report.Topic, report.Pending, report.Expired, report.Exhausted, report.Due, report.Redelivered, report.Pruned)
		}
	}

	return reports
}

// sweepTopic classifies the pending messages of one topic and acts on them per policy.
func (b *Broker) sweepTopic(topic *Topic) (SweepReport, error) {
	now := b.clock()
	report := SweepReport{Topic: topic.Name(), SweptAt: now}

	pending, err := b.store.ListNotConsumed(topic.Name())
	if err != nil {
		return report, err
	}
	report.Pending = len(pending)

	for _, msg := range pending {
		attempts := msg.DeliveryAttempts()

		switch {
		case msg.IsExpired(now):
			report.Expired++

		case !b.retryStrategy.IsRetryable(attempts):
			report.Exhausted++
			b.logger.Errorf("Message %s in %s exhausted %d delivery attempts", msg.ID, topic.Name(), attempts)

		case b.retryStrategy.IsDue(attempts, msg.LastDeliveredAt(), now):
			report.Due++
			if b.retryStrategy.ShouldEscalate(attempts) {
				b.logger.Warnf("Message %s in %s still pending after %d delivery attempts", msg.ID, topic.Name(), attempts)
			}
			if b.sweepPolicy == SweepRedeliver && topic.NotifyConsumers(msg) > 0 {
				report.Redelivered++
			}
		}
	}

	if b.retention > 0 {
		pruned, err := b.store.Prune(topic.Name(), now.Add(-b.retention))
		if err != nil {
			return report, err
		}
		report.Pruned = pruned
	}

	return report, nil
}

// GetRetrySchedule returns a human-readable description of the redelivery schedule.
func (b *Broker) GetRetrySchedule() string {
	return b.retryStrategy.GetRetrySchedule()
}
