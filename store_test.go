package broker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/broker/model"
)

func ids(messages []*model.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestMemoryStore_AppendCreatesQueueLazily(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.ListNotConsumed("orders")
	assert.ErrorIs(t, err, ErrUnknownTopic)

	msg := model.NewMessage("P1", "hello")
	s.Append("orders", msg)

	pending, err := s.ListNotConsumed("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{msg.ID}, ids(pending))
	assert.Equal(t, []string{"orders"}, s.Topics())
}

func TestMemoryStore_EnsureTopic(t *testing.T) {
	s := NewMemoryStore()
	s.EnsureTopic("orders")
	s.EnsureTopic("orders")

	pending, err := s.ListNotConsumed("orders")
	require.NoError(t, err)
	assert.Empty(t, pending)

	n, err := s.Len("orders")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_ListsPartitionAppendedMessagesInOrder(t *testing.T) {
	s := NewMemoryStore()

	var appended []*model.Message
	for i := 0; i < 10; i++ {
		msg := model.NewMessage("P1", fmt.Sprintf("m%d", i))
		appended = append(appended, msg)
		s.Append("orders", msg)
	}
	for _, i := range []int{1, 4, 5, 9} {
		_, err := s.MarkConsumed("orders", appended[i].ID, "C1")
		require.NoError(t, err)
	}

	pending, err := s.ListNotConsumed("orders")
	require.NoError(t, err)
	consumed, err := s.ListConsumed("orders")
	require.NoError(t, err)
	all, err := s.List("orders")
	require.NoError(t, err)

	assert.Equal(t, []string{appended[0].ID, appended[2].ID, appended[3].ID, appended[6].ID, appended[7].ID, appended[8].ID}, ids(pending))
	assert.Equal(t, []string{appended[1].ID, appended[4].ID, appended[5].ID, appended[9].ID}, ids(consumed))
	assert.Equal(t, ids(appended), ids(all))
	assert.Len(t, pending, len(appended)-len(consumed))
}

func TestMemoryStore_MarkConsumedIdempotent(t *testing.T) {
	s := NewMemoryStore()
	msg := model.NewMessage("P1", "hello")
	s.Append("orders", msg)

	flipped, err := s.MarkConsumed("orders", msg.ID, "C1")
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = s.MarkConsumed("orders", msg.ID, "C2")
	require.NoError(t, err)
	assert.False(t, flipped)

	assert.True(t, msg.IsConsumed())
	assert.Equal(t, "C1", msg.ConsumedBy())
}

func TestMemoryStore_MarkConsumedUnknownTopic(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.MarkConsumed("orders", "id", "C1")
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestMemoryStore_MissingMessagePolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  MissingMessagePolicy
		wantErr error
	}{
		{"fail", MissingMessageFail, ErrMessageNotFound},
		{"ignore", MissingMessageIgnore, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore(WithMissingMessages(tt.policy))
			existing := model.NewMessage("P1", "x")
			s.Append("orders", existing)

			flipped, err := s.MarkConsumed("orders", "does-not-exist", "C1")
			assert.False(t, flipped)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.False(t, existing.IsConsumed())
			assert.Equal(t, tt.name, tt.policy.String())
		})
	}
}

func TestMemoryStore_DuplicateAppendIgnored(t *testing.T) {
	s := NewMemoryStore()
	msg := model.NewMessage("P1", "hello")
	s.Append("orders", msg)
	s.Append("orders", msg)
	s.Append("orders", nil)

	n, err := s.Len("orders")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_Get(t *testing.T) {
	s := NewMemoryStore()
	msg := model.NewMessage("P1", "hello")
	s.Append("orders", msg)

	got, err := s.Get("orders", msg.ID)
	require.NoError(t, err)
	assert.Same(t, msg, got)

	_, err = s.Get("orders", "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = s.Get("billing", msg.ID)
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestMemoryStore_SnapshotsAreCopies(t *testing.T) {
	s := NewMemoryStore()
	first := model.NewMessage("P1", "a")
	s.Append("orders", first)

	snapshot, err := s.List("orders")
	require.NoError(t, err)
	snapshot[0] = model.NewMessage("X", "replaced")
	s.Append("orders", model.NewMessage("P1", "b"))

	all, err := s.List("orders")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Same(t, first, all[0])
	assert.Len(t, snapshot, 1)
}

func TestMemoryStore_Prune(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	oldConsumed := model.NewMessageAt("P1", "old-consumed", base)
	oldPending := model.NewMessageAt("P1", "old-pending", base)
	newConsumed := model.NewMessageAt("P1", "new-consumed", base.Add(time.Hour))
	for _, m := range []*model.Message{oldConsumed, oldPending, newConsumed} {
		s.Append("orders", m)
	}
	_, _ = s.MarkConsumed("orders", oldConsumed.ID, "C1")
	_, _ = s.MarkConsumed("orders", newConsumed.ID, "C1")

	dropped, err := s.Prune("orders", base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	all, err := s.List("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{oldPending.ID, newConsumed.ID}, ids(all))

	// Index is rebuilt for the remaining messages.
	got, err := s.Get("orders", newConsumed.ID)
	require.NoError(t, err)
	assert.Same(t, newConsumed, got)
	_, err = s.Get("orders", oldConsumed.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	dropped, err = s.Prune("orders", base)
	require.NoError(t, err)
	assert.Zero(t, dropped)

	_, err = s.Prune("missing", base)
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestMemoryStore_ConcurrentAppendAndConsume(t *testing.T) {
	s := NewMemoryStore()
	const perTopic = 200

	var wg sync.WaitGroup
	for _, topic := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perTopic; i++ {
				msg := model.NewMessage("P", "x")
				s.Append(topic, msg)
				if i%2 == 0 {
					_, err := s.MarkConsumed(topic, msg.ID, "C")
					assert.NoError(t, err)
				}
			}
		}()
	}
	wg.Wait()

	for _, topic := range []string{"a", "b", "c"} {
		pending, err := s.ListNotConsumed(topic)
		require.NoError(t, err)
		consumed, err := s.ListConsumed(topic)
		require.NoError(t, err)
		assert.Len(t, pending, perTopic/2)
		assert.Len(t, consumed, perTopic/2)
	}
}
