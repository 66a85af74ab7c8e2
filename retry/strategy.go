// Package retry provides the exponential backoff policy used to pace
// redelivery of pending messages during broker sweeps.
package retry

import (
	"fmt"
	"math"
	"time"
)

// Strategy defines how often a pending message may be fanned out again.
//
// The pacing follows: delay = min(BaseDelay * ExponentialBase^attempt, MaxDelay)
//
// Example with defaults (30s base, 2.0 exponential, 2m max):
//
//	After attempt 1: 1m
//	After attempt 2: 2m
//	After attempt 3: 2m (→ escalate)
//	After attempt 4: 2m
//	After attempt 5: exhausted
//
// Every delay of the default schedule is shorter than the message TTL, so
// a message is retried several times before it expires.
type Strategy struct {
	MaxAttempts     int           // Fan-outs allowed before a message is reported exhausted
	BaseDelay       time.Duration // Delay used for the first redelivery
	MaxDelay        time.Duration // Maximum delay cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
	EscalateAfter   int           // Log pending messages at warn level from this many attempts on
}

// DefaultStrategy returns the default redelivery strategy.
// Configuration: 5 max attempts, 30s→2m exponential backoff, escalation after 3 attempts.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     5,
		BaseDelay:       30 * time.Second,
		MaxDelay:        2 * time.Minute,
		ExponentialBase: 2.0,
		EscalateAfter:   3,
	}
}

// CalculateRetryDelay calculates the wait after the given attempt using exponential backoff.
// Formula: delay = min(BaseDelay * ExponentialBase^attemptNumber, MaxDelay)
func (s Strategy) CalculateRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber <= 0 {
		return s.BaseDelay
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attemptNumber))

	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}

	return time.Duration(delay)
}

// IsDue reports whether a message last delivered at lastDelivery, after
// attempts fan-outs, may be redelivered at now.
// A message that was never delivered is always due.
func (s Strategy) IsDue(attempts int, lastDelivery, now time.Time) bool {
	if lastDelivery.IsZero() {
		return true
	}
	return !now.Before(lastDelivery.Add(s.CalculateRetryDelay(attempts)))
}

// ShouldEscalate reports whether the attempt count reached the escalation threshold.
func (s Strategy) ShouldEscalate(attemptCount int) bool {
	return s.EscalateAfter > 0 && attemptCount >= s.EscalateAfter
}

// IsRetryable checks if another redelivery is allowed.
// Returns true if the attempt count is below the maximum attempts limit.
func (s Strategy) IsRetryable(attemptCount int) bool {
	return attemptCount < s.MaxAttempts
}

// Validate checks that the strategy can produce a usable schedule.
func (s Strategy) Validate() error {
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be > 0, got %d", s.MaxAttempts)
	}
	if s.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be > 0, got %v", s.BaseDelay)
	}
	if s.MaxDelay < s.BaseDelay {
		return fmt.Errorf("max delay %v is shorter than base delay %v", s.MaxDelay, s.BaseDelay)
	}
	if s.ExponentialBase < 1 {
		return fmt.Errorf("exponential base must be >= 1, got %v", s.ExponentialBase)
	}
	return nil
}

// GetRetrySchedule returns a human-readable description of the redelivery schedule.
//
// Example output:
//
//	Redelivery Schedule:
//	  Attempt 1: after 1m
//	  ...
//	  Attempt 5: after 2m
//	  → Exhausted
func (s Strategy) GetRetrySchedule() string {
	schedule := "Redelivery Schedule:\n"
	for i := 1; i <= s.MaxAttempts; i++ {
		schedule += fmt.Sprintf("  Attempt %d: after %v\n", i, s.CalculateRetryDelay(i))
		if i == s.EscalateAfter {
			schedule += "  → Escalate\n"
		}
	}
	schedule += "  → Exhausted\n"
	return schedule
}
