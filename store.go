package broker

import (
	"sort"
	"sync"
	"time"

	"github.com/coregx/broker/model"
)

// MessageStore holds the per-topic message queues.
//
// Queues are FIFO in arrival order and never reordered. Consumption is a
// logical delete: consumed messages stay queryable. All list operations
// return snapshot copies that callers may keep and modify.
type MessageStore interface {
	// EnsureTopic creates an empty queue for topic if none exists.
	EnsureTopic(topic string)

	// Append enqueues message at the tail of topic's queue, creating the queue on first use.
	Append(topic string, message *model.Message)

	// MarkConsumed sets consumed=true on the message with messageID.
	// Returns true when this call performed the transition.
	// Returns ErrUnknownTopic for an unknown topic.
	MarkConsumed(topic, messageID, consumer string) (bool, error)

	// Get returns one message by id.
	Get(topic, messageID string) (*model.Message, error)

	// List returns every message of topic in arrival order.
	List(topic string) ([]*model.Message, error)

	// ListNotConsumed returns the pending messages of topic in arrival order.
	ListNotConsumed(topic string) ([]*model.Message, error)

	// ListConsumed returns the consumed messages of topic in arrival order.
	ListConsumed(topic string) ([]*model.Message, error)

	// Len returns the number of messages held for topic.
	Len(topic string) (int, error)

	// Prune drops consumed messages created before cutoff and returns how many were dropped.
	Prune(topic string, cutoff time.Time) (int, error)

	// Topics returns the names of all known queues, sorted.
	Topics() []string
}

// MissingMessagePolicy decides what MarkConsumed does for an unknown message id.
type MissingMessagePolicy int

const (
	// MissingMessageFail returns ErrMessageNotFound.
	MissingMessageFail MissingMessagePolicy = iota

	// MissingMessageIgnore reports (false, nil) and changes nothing.
	MissingMessageIgnore
)

// String implements fmt.Stringer.
func (p MissingMessagePolicy) String() string {
	if p == MissingMessageIgnore {
		return "ignore"
	}
	return "fail"
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithMissingMessages sets the policy for MarkConsumed on an unknown message id.
func WithMissingMessages(policy MissingMessagePolicy) StoreOption {
	return func(s *MemoryStore) {
		s.missing = policy
	}
}

// MemoryStore is the in-memory MessageStore.
//
// Each topic queue has its own lock; the store-wide lock only guards the
// topic → queue map. Operations on different topics never wait on each other.
type MemoryStore struct {
	mu      sync.RWMutex
	queues  map[string]*topicQueue
	missing MissingMessagePolicy
}

// topicQueue keeps arrival order in messages and an id → position index.
type topicQueue struct {
	mu       sync.Mutex
	messages []*model.Message
	index    map[string]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		queues:  make(map[string]*topicQueue),
		missing: MissingMessageFail,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// queue returns the queue of topic, or nil.
func (s *MemoryStore) queue(topic string) *topicQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queues[topic]
}

// getOrCreate returns the queue of topic, creating it if needed.
func (s *MemoryStore) getOrCreate(topic string) *topicQueue {
	if q := s.queue(topic); q != nil {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[topic]; ok {
		return q
	}
	q := &topicQueue{index: make(map[string]int)}
	s.queues[topic] = q
	return q
}

// EnsureTopic implements MessageStore.
func (s *MemoryStore) EnsureTopic(topic string) {
	s.getOrCreate(topic)
}

// Append implements MessageStore. Appending an id already present is a no-op.
func (s *MemoryStore) Append(topic string, message *model.Message) {
	if message == nil {
		return
	}
	q := s.getOrCreate(topic)

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.index[message.ID]; exists {
		return
	}
	q.index[message.ID] = len(q.messages)
	q.messages = append(q.messages, message)
}

// MarkConsumed implements MessageStore.
// A second call for a consumed message is a successful no-op.
func (s *MemoryStore) MarkConsumed(topic, messageID, consumer string) (bool, error) {
	q := s.queue(topic)
	if q == nil {
		return false, unknownTopic(topic)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pos, ok := q.index[messageID]
	if !ok {
		if s.missing == MissingMessageIgnore {
			return false, nil
		}
		return false, messageNotFound(topic, messageID)
	}
	return q.messages[pos].MarkConsumed(consumer), nil
}

// Get implements MessageStore.
func (s *MemoryStore) Get(topic, messageID string) (*model.Message, error) {
	q := s.queue(topic)
	if q == nil {
		return nil, unknownTopic(topic)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pos, ok := q.index[messageID]
	if !ok {
		return nil, messageNotFound(topic, messageID)
	}
	return q.messages[pos], nil
}

// List implements MessageStore.
func (s *MemoryStore) List(topic string) ([]*model.Message, error) {
	return s.filter(topic, func(*model.Message) bool { return true })
}

// ListNotConsumed implements MessageStore.
func (s *MemoryStore) ListNotConsumed(topic string) ([]*model.Message, error) {
	return s.filter(topic, func(m *model.Message) bool { return !m.IsConsumed() })
}

// ListConsumed implements MessageStore.
func (s *MemoryStore) ListConsumed(topic string) ([]*model.Message, error) {
	return s.filter(topic, (*model.Message).IsConsumed)
}

func (s *MemoryStore) filter(topic string, keep func(*model.Message) bool) ([]*model.Message, error) {
	q := s.queue(topic)
	if q == nil {
		return nil, unknownTopic(topic)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*model.Message, 0, len(q.messages))
	for _, m := range q.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Len implements MessageStore.
func (s *MemoryStore) Len(topic string) (int, error) {
	q := s.queue(topic)
	if q == nil {
		return 0, unknownTopic(topic)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages), nil
}

// Prune implements MessageStore. Pending messages are never dropped.
func (s *MemoryStore) Prune(topic string, cutoff time.Time) (int, error) {
	q := s.queue(topic)
	if q == nil {
		return 0, unknownTopic(topic)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.messages[:0]
	dropped := 0
	for _, m := range q.messages {
		if m.IsConsumed() && m.CreatedAt.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	if dropped == 0 {
		return 0, nil
	}

	// Clear the tail so dropped messages can be collected.
	for i := len(kept); i < len(q.messages); i++ {
		q.messages[i] = nil
	}
	q.messages = kept
	q.index = make(map[string]int, len(kept))
	for i, m := range kept {
		q.index[m.ID] = i
	}
	return dropped, nil
}

// Topics implements MessageStore.
func (s *MemoryStore) Topics() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}
