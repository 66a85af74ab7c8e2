package broker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coregx/broker/model"
)

// Producer creates messages and publishes them through its broker.
//
// A producer is constructed with at most one outbound topic used by Send.
// RegisterTopic binds further topics usable with SendTo.
type Producer struct {
	name      string
	topicName string
	broker    *Broker
	clock     func() time.Time
	logger    Logger

	mu    sync.RWMutex
	bound map[string]struct{}
}

// Name returns the producer name.
func (p *Producer) Name() string {
	return p.name
}

// TopicName returns the construction topic, or "" if the producer has none.
func (p *Producer) TopicName() string {
	return p.topicName
}

// RegisterTopic binds topic to the producer and registers it with the broker if absent.
// Returns ErrDuplicateTopic if the broker holds a different Topic under the same name.
// Registering the same Topic again is a no-op.
func (p *Producer) RegisterTopic(topic *Topic) error {
	if topic == nil {
		return NewError(ErrCodeValidation, "topic is nil")
	}

	registered, added := p.broker.addOrGet(topic)
	if registered != topic {
		return duplicateTopic(topic.Name())
	}
	if added {
		p.logger.Infof("Producer %s registered topic %s", p.name, topic.Name())
	}

	p.mu.Lock()
	p.bound[topic.Name()] = struct{}{}
	p.mu.Unlock()
	return nil
}

// RemoveTopic unbinds name from the producer. The topic stays registered with the broker.
func (p *Producer) RemoveTopic(name string) {
	p.mu.Lock()
	delete(p.bound, name)
	p.mu.Unlock()
}

// BoundTopics returns the names the producer may publish to, sorted.
func (p *Producer) BoundTopics() []string {
	p.mu.RLock()
	names := make([]string, 0, len(p.bound))
	for name := range p.bound {
		names = append(names, name)
	}
	p.mu.RUnlock()

	sort.Strings(names)
	return names
}

// IsBound reports whether the producer may publish to name.
func (p *Producer) IsBound(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.bound[name]
	return ok
}

// Send publishes text to the construction topic.
// Returns ErrUnboundTopic if the producer was constructed without one.
func (p *Producer) Send(text string) (*model.Message, error) {
	if p.topicName == "" {
		return nil, NewError(ErrCodeUnboundTopic, fmt.Sprintf("producer %s has no topic", p.name))
	}
	return p.publish(p.topicName, text)
}

// SendTo publishes text to a bound topic.
// Returns ErrUnboundTopic if name is not bound to the producer.
func (p *Producer) SendTo(name, text string) (*model.Message, error) {
	if !p.IsBound(name) {
		return nil, NewError(ErrCodeUnboundTopic, fmt.Sprintf("producer %s is not bound to topic %s", p.name, name))
	}
	return p.publish(name, text)
}

// SendBatch publishes every text to the construction topic.
// Failures are logged and skipped; the returned error joins them.
func (p *Producer) SendBatch(texts []string) ([]*model.Message, error) {
	if len(texts) == 0 {
		return []*model.Message{}, nil
	}

	sent := make([]*model.Message, 0, len(texts))
	var errs []error
	for i, text := range texts {
		msg, err := p.Send(text)
		if err != nil {
			p.logger.Errorf("Failed to send batch item %d (producer=%s, topic=%s): %v", i, p.name, p.topicName, err)
			errs = append(errs, err)
			continue
		}
		sent = append(sent, msg)
	}
	return sent, errors.Join(errs...)
}

func (p *Producer) publish(topicName, text string) (*model.Message, error) {
	msg := model.NewMessageAt(p.name, text, p.clock())
	if err := p.broker.Publish(topicName, msg); err != nil {
		return nil, err
	}

	p.logger.Debugf("Producer %s sent message %s to %s", p.name, msg.ID, topicName)
	return msg, nil
}
