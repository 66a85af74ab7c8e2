package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TTL is the fixed lifetime of a message. A message is expired once the
// clock is strictly past CreatedAt + TTL.
const TTL = 5 * time.Minute

// Message represents a published message held by the broker.
// ID, ProducerName, Body and CreatedAt are immutable once created.
//
// The consumption state is mutable and guarded by the message itself:
//   - consumed flips false → true at most once
//   - consumptionLog is append-only and records every consumer that tried
//   - delivery bookkeeping is updated on every fan-out and read by the sweeper
type Message struct {
	ID           string    `json:"id"`           // Globally unique message ID (UUID)
	ProducerName string    `json:"producerName"` // Producer that created the message
	Body         string    `json:"body"`         // Opaque text payload
	CreatedAt    time.Time `json:"createdAt"`    // Creation timestamp, starts the TTL

	mu               sync.Mutex
	consumed         bool
	consumedBy       string
	consumptionLog   []string
	deliveryAttempts int
	lastDeliveredAt  time.Time
}

// NewMessage creates a new unconsumed message stamped with the current time.
func NewMessage(producerName, body string) *Message {
	return NewMessageAt(producerName, body, time.Now())
}

// NewMessageAt creates a new unconsumed message with an explicit creation time.
// Each call assigns a fresh random ID.
//
// Parameters:
//   - producerName: Name of the producer the message is attributed to
//   - body: Message payload
//   - createdAt: Creation timestamp used for expiry
func NewMessageAt(producerName, body string, createdAt time.Time) *Message {
	return &Message{
		ID:           uuid.NewString(),
		ProducerName: producerName,
		Body:         body,
		CreatedAt:    createdAt,
	}
}

// ExpiresAt returns the instant after which the message can no longer be consumed.
func (m *Message) ExpiresAt() time.Time {
	return m.CreatedAt.Add(TTL)
}

// IsExpired reports whether now is strictly after ExpiresAt.
func (m *Message) IsExpired(now time.Time) bool {
	return now.After(m.ExpiresAt())
}

// IsConsumed reports whether the message has been consumed.
func (m *Message) IsConsumed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumed
}

// ConsumedBy returns the consumer whose attempt consumed the message, or "".
func (m *Message) ConsumedBy() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumedBy
}

// MarkConsumed sets the consumed flag.
// Returns true only for the call that performed the transition; later calls
// are no-ops and keep the first consumer.
func (m *Message) MarkConsumed(consumer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consumed {
		return false
	}
	m.consumed = true
	m.consumedBy = consumer
	return true
}

// RecordAttempt appends consumer to the consumption log.
func (m *Message) RecordAttempt(consumer string) {
	m.mu.Lock()
	m.consumptionLog = append(m.consumptionLog, consumer)
	m.mu.Unlock()
}

// ConsumptionLog returns a copy of the consumers that attempted consumption, in attempt order.
func (m *Message) ConsumptionLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.consumptionLog))
	copy(out, m.consumptionLog)
	return out
}

// RecordDelivery registers a fan-out of the message and returns the new attempt count.
func (m *Message) RecordDelivery(at time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deliveryAttempts++
	m.lastDeliveredAt = at
	return m.deliveryAttempts
}

// DeliveryAttempts returns how many times the message has been fanned out.
func (m *Message) DeliveryAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveryAttempts
}

// LastDeliveredAt returns the time of the latest fan-out (zero if never).
func (m *Message) LastDeliveredAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDeliveredAt
}

// View renders the message as of now.
func (m *Message) View(now time.Time) MessageView {
	return MessageView{
		ID:           m.ID,
		Body:         m.Body,
		ProducerName: m.ProducerName,
		CreatedAt:    m.CreatedAt,
		Consumed:     m.IsConsumed(),
		Expired:      m.IsExpired(now),
	}
}

// String implements fmt.Stringer.
func (m *Message) String() string {
	return fmt.Sprintf("Message{id=%s, body=%q, producer=%s, createdAt=%s, consumed=%t}",
		m.ID, m.Body, m.ProducerName, m.CreatedAt.Format(time.RFC3339), m.IsConsumed())
}
