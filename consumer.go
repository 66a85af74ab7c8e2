package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/coregx/broker/model"
)

// Consumer consumes messages of a single topic.
//
// Each attempt goes through: record attempt → expiry check → mark consumed.
// Consume never fails loudly: errors are logged, counted and reported as false.
type Consumer struct {
	name      string
	topicName string
	store     MessageStore
	clock     func() time.Time
	logger    Logger
	metrics   MetricsRecorder
	audit     *auditWriter
}

// Name returns the consumer name. It implements Subscriber.
func (c *Consumer) Name() string {
	return c.name
}

// TopicName returns the topic whose store queue the consumer marks messages in.
func (c *Consumer) TopicName() string {
	return c.topicName
}

// TryConsume attempts to consume message and returns the reason it failed.
//
// Returns:
//   - ErrNilMessage for a nil message
//   - ErrExpiredMessage when the message is past its TTL (it stays unconsumed)
//   - ErrUnknownTopic or ErrMessageNotFound from the store
//
// Consuming an already consumed, unexpired message succeeds without changing it.
func (c *Consumer) TryConsume(message *model.Message) error {
	if message == nil {
		return ErrNilMessage
	}

	message.RecordAttempt(c.name)

	now := c.clock()
	if message.IsExpired(now) {
		return NewError(ErrCodeExpiredMessage,
			fmt.Sprintf("message %s expired at %s", message.ID, message.ExpiresAt().Format(time.RFC3339)))
	}

	if _, err := c.store.MarkConsumed(c.topicName, message.ID, c.name); err != nil {
		return err
	}
	return nil
}

// Consume implements Subscriber: it runs Attempt and reports whether the message is consumed.
func (c *Consumer) Consume(message *model.Message) bool {
	return c.Attempt(message) == nil
}

// Attempt runs TryConsume and records the outcome in metrics, the audit
// trail and the log before returning the TryConsume error.
func (c *Consumer) Attempt(message *model.Message) error {
	err := c.TryConsume(message)
	outcome := classify(err)

	c.metrics.ConsumeAttempt(c.topicName, outcome)

	messageID := ""
	if message != nil {
		messageID = message.ID
	}
	c.audit.consumption(model.NewConsumptionRecord(c.topicName, messageID, c.name, outcome, err, c.clock()))

	if err != nil {
		c.logger.Warnf("Consumer %s could not consume message %s (topic=%s): %v",
			c.name, messageID, c.topicName, err)
		return err
	}

	c.logger.Infof("Consumer %s consumed %s", c.name, message)
	return nil
}

// classify maps a TryConsume result to an audit outcome.
func classify(err error) model.ConsumptionOutcome {
	switch {
	case err == nil:
		return model.OutcomeConsumed
	case errors.Is(err, ErrExpiredMessage):
		return model.OutcomeExpired
	case errors.Is(err, ErrUnknownTopic), errors.Is(err, ErrMessageNotFound):
		return model.OutcomeNotFound
	default:
		return model.OutcomeRejected
	}
}
