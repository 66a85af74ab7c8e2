package retry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStrategy(t *testing.T) {
	strategy := DefaultStrategy()

	assert.Equal(t, 5, strategy.MaxAttempts)
	assert.Equal(t, 30*time.Second, strategy.BaseDelay)
	assert.Equal(t, 2*time.Minute, strategy.MaxDelay)
	assert.Equal(t, 2.0, strategy.ExponentialBase)
	assert.Equal(t, 3, strategy.EscalateAfter)
	assert.NoError(t, strategy.Validate())
}

func TestStrategy_CalculateRetryDelay(t *testing.T) {
	strategy := DefaultStrategy()

	tests := []struct {
		name          string
		attemptNumber int
		expectedDelay time.Duration
	}{
		{"zero attempts - base delay", 0, 30 * time.Second},
		{"negative attempts - base delay", -1, 30 * time.Second},
		{"first attempt", 1, 60 * time.Second},
		{"second attempt", 2, 2 * time.Minute},
		{"third attempt - capped", 3, 2 * time.Minute},
		{"large attempt number - still capped", 100, 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedDelay, strategy.CalculateRetryDelay(tt.attemptNumber))
		})
	}
}

func TestStrategy_DelaysBelowTTL(t *testing.T) {
	strategy := DefaultStrategy()
	for i := 0; i <= strategy.MaxAttempts; i++ {
		assert.Less(t, strategy.CalculateRetryDelay(i), 5*time.Minute)
	}
}

func TestStrategy_IsDue(t *testing.T) {
	strategy := DefaultStrategy()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		attempts int
		last     time.Time
		want     bool
	}{
		{"never delivered", 0, time.Time{}, true},
		{"too soon after first", 1, now.Add(-30 * time.Second), false},
		{"exactly due after first", 1, now.Add(-time.Minute), true},
		{"well past due", 2, now.Add(-10 * time.Minute), true},
		{"capped delay not reached", 4, now.Add(-time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, strategy.IsDue(tt.attempts, tt.last, now))
		})
	}
}

func TestStrategy_ShouldEscalate(t *testing.T) {
	strategy := DefaultStrategy()

	assert.False(t, strategy.ShouldEscalate(0))
	assert.False(t, strategy.ShouldEscalate(2))
	assert.True(t, strategy.ShouldEscalate(3))
	assert.True(t, strategy.ShouldEscalate(10))

	strategy.EscalateAfter = 0
	assert.False(t, strategy.ShouldEscalate(10))
}

func TestStrategy_IsRetryable(t *testing.T) {
	strategy := DefaultStrategy()

	assert.True(t, strategy.IsRetryable(0))
	assert.True(t, strategy.IsRetryable(4))
	assert.False(t, strategy.IsRetryable(5))
	assert.False(t, strategy.IsRetryable(6))
}

func TestStrategy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Strategy)
		wantErr string
	}{
		{"zero attempts", func(s *Strategy) { s.MaxAttempts = 0 }, "max attempts"},
		{"zero base", func(s *Strategy) { s.BaseDelay = 0 }, "base delay"},
		{"max below base", func(s *Strategy) { s.MaxDelay = time.Second }, "shorter than base"},
		{"shrinking base", func(s *Strategy) { s.ExponentialBase = 0.5 }, "exponential base"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultStrategy()
			tt.mutate(&s)
			err := s.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStrategy_GetRetrySchedule(t *testing.T) {
	schedule := DefaultStrategy().GetRetrySchedule()

	assert.True(t, strings.HasPrefix(schedule, "Redelivery Schedule:"))
	assert.Contains(t, schedule, "Attempt 1: after 1m0s")
	assert.Contains(t, schedule, "Attempt 5: after 2m0s")
	assert.Contains(t, schedule, "→ Escalate")
	assert.True(t, strings.HasSuffix(schedule, "→ Exhausted\n"))
}
