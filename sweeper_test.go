package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/broker/model"
	"github.com/coregx/broker/retry"
)

// publishUnconsumed publishes one message to a subscriber that never consumes it
// and waits for the first delivery.
func publishUnconsumed(t *testing.T, b *Broker, topic string) (*recordingSubscriber, *model.Message) {
	t.Helper()

	_, err := b.CreateTopic(topic)
	require.NoError(t, err)
	sub := newRecordingSubscriber("C1", false)
	require.NoError(t, b.Subscribe(topic, sub))

	msg := model.NewMessageAt("P1", "hello", b.Now())
	require.NoError(t, b.Publish(topic, msg))
	require.Eventually(t, func() bool { return sub.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	return sub, msg
}

func TestSweep_RedeliversDueMessages(t *testing.T) {
	b, clock := newTestBroker(t)
	sub, msg := publishUnconsumed(t, b, "orders")

	reports := b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Pending)
	assert.Zero(t, reports[0].Due, "retry delay has not elapsed")
	assert.Zero(t, reports[0].Redelivered)

	clock.Advance(61 * time.Second)
	reports = b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, "orders", reports[0].Topic)
	assert.Equal(t, 1, reports[0].Due)
	assert.Equal(t, 1, reports[0].Redelivered)
	assert.Equal(t, clock.Now(), reports[0].SweptAt)

	assert.Eventually(t, func() bool { return sub.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, msg.DeliveryAttempts())
	assert.Equal(t, clock.Now(), msg.LastDeliveredAt())
}

func TestSweep_ReportOnlyLeavesMessagesAlone(t *testing.T) {
	b, clock := newTestBroker(t, WithSweepPolicy(SweepReportOnly))
	sub, msg := publishUnconsumed(t, b, "orders")

	clock.Advance(61 * time.Second)
	reports := b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Due)
	assert.Zero(t, reports[0].Redelivered)

	b.Close()
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.Equal(t, 1, msg.DeliveryAttempts())
}

func TestSweep_SkipsExpiredMessages(t *testing.T) {
	b, clock := newTestBroker(t)
	sub, _ := publishUnconsumed(t, b, "orders")

	clock.Advance(model.TTL + time.Second)
	reports := b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Pending)
	assert.Equal(t, 1, reports[0].Expired)
	assert.Zero(t, reports[0].Due)

	b.Close()
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestSweep_CountsExhaustedMessages(t *testing.T) {
	strategy := retry.DefaultStrategy()
	strategy.MaxAttempts = 1

	logger := &captureLogger{}
	b, clock := newTestBroker(t, WithRetryStrategy(strategy), WithLogger(logger))
	_, msg := publishUnconsumed(t, b, "orders")

	clock.Advance(time.Minute)
	reports := b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Exhausted)
	assert.Zero(t, reports[0].Redelivered)
	assert.True(t, logger.Contains("ERROR", msg.ID))
}

func TestSweep_DeliversMessagesPublishedWithoutSubscribers(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.CreateTopic("orders")
	require.NoError(t, err)
	require.NoError(t, b.Publish("orders", model.NewMessageAt("P1", "early", b.Now())))

	reports := b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Due)
	assert.Zero(t, reports[0].Redelivered, "nobody to deliver to")

	c, err := b.NewConsumer("C1", "orders")
	require.NoError(t, err)
	require.NoError(t, b.Subscribe("orders", c))

	reports = b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Redelivered)

	assert.Eventually(t, func() bool {
		consumed, err := b.ListConsumed("orders")
		return err == nil && len(consumed) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSweep_EscalatesLongPendingMessages(t *testing.T) {
	strategy := retry.Strategy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second, ExponentialBase: 1, EscalateAfter: 1}

	logger := &captureLogger{}
	b, clock := newTestBroker(t, WithRetryStrategy(strategy), WithLogger(logger))
	_, msg := publishUnconsumed(t, b, "orders")

	clock.Advance(2 * time.Second)
	b.Sweep(context.Background())
	assert.True(t, logger.Contains("WARN", msg.ID))
}

func TestSweep_PrunesConsumedMessagesPastRetention(t *testing.T) {
	b, clock := newTestBroker(t, WithRetention(time.Minute))
	_, err := b.CreateTopic("orders")
	require.NoError(t, err)

	c, err := b.NewConsumer("C1", "orders")
	require.NoError(t, err)
	old := model.NewMessageAt("P1", "old", clock.Now())
	pending := model.NewMessageAt("P1", "pending", clock.Now())
	require.NoError(t, b.Publish("orders", old))
	require.NoError(t, b.Publish("orders", pending))
	require.True(t, c.Consume(old))

	clock.Advance(2 * time.Minute)
	fresh := model.NewMessageAt("P1", "fresh", clock.Now())
	require.NoError(t, b.Publish("orders", fresh))
	require.True(t, c.Consume(fresh))

	reports := b.Sweep(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Pruned)

	all, err := b.Store().List("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{pending.ID, fresh.ID}, ids(all))
}

func TestSweep_VisitsTopicsInOrder(t *testing.T) {
	b, _ := newTestBroker(t)
	for _, name := range []string{"b", "c", "a"} {
		_, err := b.CreateTopic(name)
		require.NoError(t, err)
	}

	reports := b.Sweep(context.Background())
	require.Len(t, reports, 3)
	assert.Equal(t, "a", reports[0].Topic)
	assert.Equal(t, "b", reports[1].Topic)
	assert.Equal(t, "c", reports[2].Topic)
}

func TestSweep_StopsOnCanceledContext(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.CreateTopic("orders")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, b.Sweep(ctx))
}

func TestSweep_ReportsMetrics(t *testing.T) {
	metrics := newCountingMetrics()
	b, _ := newTestBroker(t, WithMetrics(metrics))
	_, err := b.CreateTopic("orders")
	require.NoError(t, err)

	b.Sweep(context.Background())

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	require.Len(t, metrics.sweeps, 1)
	assert.Equal(t, "orders", metrics.sweeps[0].Topic)
}

func TestSweepReport_Record(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := SweepReport{Topic: "orders", Pending: 4, Expired: 1, Exhausted: 1, Due: 2, Redelivered: 2, Pruned: 3, SweptAt: at}

	rec := r.Record()
	assert.Equal(t, model.SweepRecord{
		Topic:       "orders",
		Pending:     4,
		Expired:     1,
		Redelivered: 2,
		Exhausted:   1,
		Pruned:      3,
		SweptAt:     at,
	}, rec)
}

func TestSweepPolicy_String(t *testing.T) {
	assert.Equal(t, "redeliver", SweepRedeliver.String())
	assert.Equal(t, "report", SweepReportOnly.String())
}

func TestBroker_GetRetrySchedule(t *testing.T) {
	b, _ := newTestBroker(t)
	assert.Contains(t, b.GetRetrySchedule(), "Redelivery Schedule:")
}
