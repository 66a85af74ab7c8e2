package broker

import (
	"sort"
	"sync"
	"time"

	"github.com/coregx/broker/model"
	"github.com/coregx/broker/retry"
)

// Broker owns the topic registry and wires topics, producers and consumers
// to a shared message store.
//
// The registry lock only guards the name → topic map. Message traffic is
// serialized per topic by the store and never takes the registry lock for
// longer than a lookup.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]*Topic

	store      MessageStore
	dispatcher *dispatcher
	audit      *auditWriter

	logger        Logger
	metrics       MetricsRecorder
	auditSink     AuditSink
	clock         func() time.Time
	retryStrategy retry.Strategy
	sweepPolicy   SweepPolicy
	sweepDelay    time.Duration
	sweepPeriod   time.Duration
	retention     time.Duration
	missing       MissingMessagePolicy
	workers       int
	queueSize     int
	auditBuffer   int

	scheduleOnce sync.Once
	closeOnce    sync.Once
	stop         chan struct{}
	loops        sync.WaitGroup
}

// NewBroker creates a broker with the provided options.
//
// Every option is optional. The defaults are an in-memory store, a silent
// logger, 8 dispatcher workers, a 2m/1m sweep schedule with redelivery and
// no audit trail.
//
// Example:
//
//	b, err := broker.NewBroker(broker.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
func NewBroker(opts ...Option) (*Broker, error) {
	b := &Broker{
		topics:        make(map[string]*Topic),
		logger:        &NoopLogger{},
		metrics:       NoopMetrics{},
		auditSink:     &NoOpAuditSink{},
		clock:         time.Now,
		retryStrategy: retry.DefaultStrategy(),
		sweepPolicy:   SweepRedeliver,
		sweepDelay:    2 * time.Minute,
		sweepPeriod:   time.Minute,
		missing:       MissingMessageFail,
		workers:       8,
		queueSize:     1024,
		auditBuffer:   1024,
		stop:          make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply broker option", err)
		}
	}

	if b.store == nil {
		b.store = NewMemoryStore(WithMissingMessages(b.missing))
	}
	b.dispatcher = newDispatcher(b.workers, b.queueSize, b.logger, b.metrics)
	b.audit = newAuditWriter(b.auditSink, b.auditBuffer, b.logger, b.metrics)

	return b, nil
}

// Store returns the broker's message store.
func (b *Broker) Store() MessageStore {
	return b.store
}

// Now returns the broker clock's current time.
func (b *Broker) Now() time.Time {
	return b.clock()
}

// NewTopic creates an unregistered topic wired to this broker.
// Register it with AddTopic or Producer.RegisterTopic.
func (b *Broker) NewTopic(name string) (*Topic, error) {
	if err := model.ValidateName(name); err != nil {
		return nil, invalidName("topic", name, err)
	}
	return &Topic{
		name:       name,
		store:      b.store,
		dispatcher: b.dispatcher,
		clock:      b.clock,
		logger:     withPrefix(b.logger, "topic", name),
		metrics:    b.metrics,
		byName:     make(map[string]struct{}),
	}, nil
}

// CreateTopic creates and registers a topic.
// Returns ErrDuplicateTopic if the name is already registered.
func (b *Broker) CreateTopic(name string) (*Topic, error) {
	topic, err := b.NewTopic(name)
	if err != nil {
		return nil, err
	}
	if err := b.AddTopic(topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// AddTopic registers an existing topic.
// Returns ErrDuplicateTopic if the name is already registered.
func (b *Broker) AddTopic(topic *Topic) error {
	if topic == nil {
		return NewError(ErrCodeValidation, "topic is nil")
	}
	if _, added := b.addOrGet(topic); !added {
		return duplicateTopic(topic.Name())
	}
	return nil
}

// addOrGet registers topic if its name is free.
// Returns the topic registered under the name and whether topic was added.
func (b *Broker) addOrGet(topic *Topic) (*Topic, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.topics[topic.Name()]; ok {
		return existing, false
	}
	b.topics[topic.Name()] = topic
	b.store.EnsureTopic(topic.Name())
	b.logger.Infof("Topic created: %s", topic.Name())
	return topic, true
}

// RemoveTopic unsubscribes every subscriber of the topic and then unregisters it.
// Messages already stored under the name stay in the store.
// Returns ErrUnknownTopic if the name is not registered.
func (b *Broker) RemoveTopic(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.topics[name]
	if !ok {
		return unknownTopic(name)
	}

	removed := topic.unsubscribeAll()
	delete(b.topics, name)

	b.logger.Infof("Topic removed: %s (unsubscribed %d)", name, len(removed))
	return nil
}

// GetTopic returns the topic registered under name.
// Returns ErrUnknownTopic if the name is not registered.
func (b *Broker) GetTopic(name string) (*Topic, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topic, ok := b.topics[name]
	if !ok {
		return nil, unknownTopic(name)
	}
	return topic, nil
}

// HasTopic reports whether name is registered.
func (b *Broker) HasTopic(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.topics[name]
	return ok
}

// Topics returns the registered topic names, sorted.
func (b *Broker) Topics() []string {
	b.mu.RLock()
	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	b.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (b *Broker) topicSnapshot() []*Topic {
	b.mu.RLock()
	topics := make([]*Topic, 0, len(b.topics))
	for _, t := range b.topics {
		topics = append(topics, t)
	}
	b.mu.RUnlock()

	sort.Slice(topics, func(i, j int) bool { return topics[i].Name() < topics[j].Name() })
	return topics
}

// Subscribe adds s to the topic registered under topicName.
// Returns ErrUnknownTopic, without side effects, if the name is not registered.
// Subscribing twice is a no-op.
func (b *Broker) Subscribe(topicName string, s Subscriber) error {
	if s == nil {
		return NewError(ErrCodeValidation, "subscriber is nil")
	}

	// Held across the topic update so a concurrent RemoveTopic cannot leave s dangling.
	b.mu.RLock()
	defer b.mu.RUnlock()

	topic, ok := b.topics[topicName]
	if !ok {
		return unknownTopic(topicName)
	}
	if topic.Subscribe(s) {
		b.logger.Infof("Subscribed %s to %s", s.Name(), topicName)
	}
	return nil
}

// Unsubscribe removes s from the topic registered under topicName.
// Returns ErrUnknownTopic if the name is not registered.
func (b *Broker) Unsubscribe(topicName string, s Subscriber) error {
	if s == nil {
		return NewError(ErrCodeValidation, "subscriber is nil")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	topic, ok := b.topics[topicName]
	if !ok {
		return unknownTopic(topicName)
	}
	if topic.Unsubscribe(s) {
		b.logger.Infof("Unsubscribed %s from %s", s.Name(), topicName)
	}
	return nil
}

// Publish appends message to the topic registered under topicName and fans it out.
// Returns ErrUnknownTopic if the name is not registered, ErrNilMessage for a nil message.
func (b *Broker) Publish(topicName string, message *model.Message) error {
	topic, err := b.GetTopic(topicName)
	if err != nil {
		return err
	}
	return topic.AddMessage(message)
}

// ListNotConsumed returns the pending messages of topicName in arrival order.
func (b *Broker) ListNotConsumed(topicName string) ([]*model.Message, error) {
	return b.store.ListNotConsumed(topicName)
}

// ListConsumed returns the consumed messages of topicName in arrival order.
func (b *Broker) ListConsumed(topicName string) ([]*model.Message, error) {
	return b.store.ListConsumed(topicName)
}

// NewProducer creates a producer attributed to name.
// topicName is the construction topic used by Send; it may be empty.
func (b *Broker) NewProducer(name, topicName string) (*Producer, error) {
	reg := model.Registration{Name: name, Topic: topicName}
	if err := reg.Validate(); err != nil {
		return nil, invalidName("producer", name, err)
	}

	p := &Producer{
		name:      name,
		topicName: topicName,
		broker:    b,
		clock:     b.clock,
		logger:    b.logger,
		bound:     make(map[string]struct{}),
	}
	if topicName != "" {
		p.bound[topicName] = struct{}{}
	}
	return p, nil
}

// NewConsumer creates a consumer named name that marks messages in topicName.
// The consumer still has to be subscribed with Subscribe to receive fan-outs.
func (b *Broker) NewConsumer(name, topicName string) (*Consumer, error) {
	if err := model.ValidateName(name); err != nil {
		return nil, invalidName("consumer", name, err)
	}
	if err := model.ValidateName(topicName); err != nil {
		return nil, invalidName("topic", topicName, err)
	}

	return &Consumer{
		name:      name,
		topicName: topicName,
		store:     b.store,
		clock:     b.clock,
		logger:    b.logger,
		metrics:   b.metrics,
		audit:     b.audit,
	}, nil
}

// Close stops the background sweep, drains pending deliveries and flushes the audit trail.
// Publishing after Close still stores messages but delivers nothing.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		close(b.stop)
		b.loops.Wait()
		b.dispatcher.close()
		b.audit.close()
		b.logger.Info("Broker closed")
	})
}
