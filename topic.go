package broker

import (
	"sync"
	"time"

	"github.com/coregx/broker/model"
)

// Subscriber receives messages fanned out by a Topic.
// Consume must be safe for concurrent use; its result is only logged.
type Subscriber interface {
	Name() string
	Consume(message *model.Message) bool
}

// Topic is a named channel with an ordered set of subscribers.
//
// Messages added to a topic are appended to the broker's store under the
// topic name and then fanned out to every current subscriber, each on its
// own dispatcher task. AddMessage never waits for delivery.
type Topic struct {
	name       string
	store      MessageStore
	dispatcher *dispatcher
	clock      func() time.Time
	logger     Logger
	metrics    MetricsRecorder

	mu          sync.RWMutex
	subscribers []Subscriber
	byName      map[string]struct{}
}

// Name returns the topic name.
func (t *Topic) Name() string {
	return t.name
}

// Subscribe adds s to the subscriber set.
// Returns false if a subscriber with the same name is already present.
func (t *Topic) Subscribe(s Subscriber) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byName[s.Name()]; ok {
		return false
	}
	t.byName[s.Name()] = struct{}{}
	t.subscribers = append(t.subscribers, s)
	return true
}

// Unsubscribe removes the subscriber named like s.
// Returns false if it was not subscribed.
func (t *Topic) Unsubscribe(s Subscriber) bool {
	return t.unsubscribeName(s.Name())
}

func (t *Topic) unsubscribeName(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byName[name]; !ok {
		return false
	}
	delete(t.byName, name)
	for i, s := range t.subscribers {
		if s.Name() == name {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			break
		}
	}
	return true
}

// unsubscribeAll empties the subscriber set and returns the removed subscribers.
func (t *Topic) unsubscribeAll() []Subscriber {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := t.subscribers
	t.subscribers = nil
	t.byName = make(map[string]struct{})
	return removed
}

// Subscribers returns the current subscribers in subscription order.
func (t *Topic) Subscribers() []Subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Subscriber, len(t.subscribers))
	copy(out, t.subscribers)
	return out
}

// IsSubscribed reports whether a subscriber with name is present.
func (t *Topic) IsSubscribed(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.byName[name]
	return ok
}

// Len returns the number of subscribers.
func (t *Topic) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subscribers)
}

// AddMessage appends message to the topic's queue and notifies the subscribers.
func (t *Topic) AddMessage(message *model.Message) error {
	if message == nil {
		return ErrNilMessage
	}

	t.store.Append(t.name, message)
	t.metrics.MessagePublished(t.name)
	t.logger.Debugf("Message %s appended (producer=%s)", message.ID, message.ProducerName)

	t.NotifyConsumers(message)
	return nil
}

// NotifyConsumers schedules one delivery of message per current subscriber
// and returns how many were accepted. Deliveries rejected by a full
// dispatcher are logged and left to the sweeper.
func (t *Topic) NotifyConsumers(message *model.Message) int {
	subscribers := t.Subscribers()
	if len(subscribers) == 0 {
		return 0
	}

	attempt := message.RecordDelivery(t.clock())

	scheduled := 0
	for _, s := range subscribers {
		job := delivery{topic: t.name, subscriber: s, message: message}
		if !t.dispatcher.submit(job) {
			t.metrics.DeliveryDropped(t.name)
			t.logger.Warnf("Dispatcher full, dropping delivery of message %s to %s (attempt=%d)",
				message.ID, s.Name(), attempt)
			continue
		}
		scheduled++
	}
	return scheduled
}
