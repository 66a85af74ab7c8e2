package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/broker/model"
)

func TestTopic_SubscribeIdempotent(t *testing.T) {
	b, _ := newTestBroker(t)
	topic, err := b.NewTopic("orders")
	require.NoError(t, err)

	c1 := newRecordingSubscriber("C1", true)
	c2 := newRecordingSubscriber("C2", true)

	assert.True(t, topic.Subscribe(c1))
	assert.False(t, topic.Subscribe(c1))
	assert.False(t, topic.Subscribe(newRecordingSubscriber("C1", false)))
	assert.True(t, topic.Subscribe(c2))

	subs := topic.Subscribers()
	require.Len(t, subs, 2)
	assert.Equal(t, "C1", subs[0].Name())
	assert.Equal(t, "C2", subs[1].Name())
	assert.Equal(t, 2, topic.Len())

	assert.True(t, topic.Unsubscribe(c1))
	assert.False(t, topic.Unsubscribe(c1))
	assert.False(t, topic.IsSubscribed("C1"))
	assert.True(t, topic.IsSubscribed("C2"))
	assert.Equal(t, 1, topic.Len())
}

func TestTopic_AddMessageFansOutToEverySubscriber(t *testing.T) {
	b, _ := newTestBroker(t)
	topic, err := b.CreateTopic("orders")
	require.NoError(t, err)

	subs := []*recordingSubscriber{
		newRecordingSubscriber("C1", true),
		newRecordingSubscriber("C2", false),
		newRecordingSubscriber("C3", true),
	}
	for _, s := range subs {
		topic.Subscribe(s)
	}

	msg := model.NewMessage("P1", "hello")
	require.NoError(t, topic.AddMessage(msg))

	for _, s := range subs {
		assert.Eventually(t, func() bool { return s.calls.Load() == 1 }, time.Second, 5*time.Millisecond, s.name)
	}
	assert.Equal(t, 1, msg.DeliveryAttempts())

	stored, err := b.Store().List("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, ids(stored))
}

func TestTopic_AddMessageNil(t *testing.T) {
	b, _ := newTestBroker(t)
	topic, err := b.CreateTopic("orders")
	require.NoError(t, err)

	assert.ErrorIs(t, topic.AddMessage(nil), ErrNilMessage)
}

func TestTopic_AddMessageDoesNotWaitForDelivery(t *testing.T) {
	b, _ := newTestBroker(t)
	topic, err := b.CreateTopic("orders")
	require.NoError(t, err)

	slow := newBlockingSubscriber("slow")
	topic.Subscribe(slow)
	defer close(slow.release)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = topic.AddMessage(model.NewMessage("P1", "x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AddMessage blocked on a slow subscriber")
	}
}

func TestTopic_NotifyConsumersWithoutSubscribers(t *testing.T) {
	b, _ := newTestBroker(t)
	topic, err := b.CreateTopic("orders")
	require.NoError(t, err)

	msg := model.NewMessage("P1", "hello")
	require.NoError(t, topic.AddMessage(msg))

	assert.Zero(t, topic.NotifyConsumers(msg))
	assert.Zero(t, msg.DeliveryAttempts())
}

func TestTopic_SubscriberPanicIsRecovered(t *testing.T) {
	logger := &captureLogger{}
	b, _ := newTestBroker(t, WithLogger(logger))
	topic, err := b.CreateTopic("orders")
	require.NoError(t, err)

	topic.Subscribe(panicSubscriber{})
	healthy := newRecordingSubscriber("healthy", true)
	topic.Subscribe(healthy)

	require.NoError(t, topic.AddMessage(model.NewMessage("P1", "boom")))

	assert.Eventually(t, func() bool { return healthy.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return logger.Contains("ERROR", "panicked") }, time.Second, 5*time.Millisecond)
}

type panicSubscriber struct{}

func (panicSubscriber) Name() string { return "panics" }

func (panicSubscriber) Consume(*model.Message) bool { panic("subscriber failure") }
