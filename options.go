package broker

import (
	"fmt"
	"time"

	"github.com/coregx/broker/retry"
)

// Option is a function that configures a Broker.
//
// Example:
//
//	b, err := broker.NewBroker(
//	    broker.WithLogger(logger),
//	    broker.WithDispatcher(16, 4096),
//	    broker.WithSweepSchedule(time.Minute, 30*time.Second),
//	)
type Option func(*Broker) error

// WithLogger sets the logger. Default: NoopLogger.
func WithLogger(logger Logger) Option {
	return func(b *Broker) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		b.logger = logger
		return nil
	}
}

// WithStore replaces the default MemoryStore.
// WithMissingMessagePolicy has no effect on a store supplied here.
func WithStore(store MessageStore) Option {
	return func(b *Broker) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		b.store = store
		return nil
	}
}

// WithClock sets the time source used for message timestamps, expiry and sweeps.
// Default: time.Now.
func WithClock(clock func() time.Time) Option {
	return func(b *Broker) error {
		if clock == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		b.clock = clock
		return nil
	}
}

// WithDispatcher sizes the fan-out worker pool.
// Default: 8 workers and a queue of 1024 tasks.
//
// Both values must be > 0. When the queue is full, deliveries are dropped
// and picked up again by the next sweep.
func WithDispatcher(workers, queueSize int) Option {
	return func(b *Broker) error {
		if workers <= 0 {
			return fmt.Errorf("workers must be > 0, got %d", workers)
		}
		if queueSize <= 0 {
			return fmt.Errorf("queue size must be > 0, got %d", queueSize)
		}
		b.workers = workers
		b.queueSize = queueSize
		return nil
	}
}

// WithSweepSchedule sets the initial delay and the period of the background sweep.
// Default: 2m delay, 1m period.
func WithSweepSchedule(initialDelay, period time.Duration) Option {
	return func(b *Broker) error {
		if initialDelay < 0 {
			return fmt.Errorf("initial delay must be >= 0, got %v", initialDelay)
		}
		if period <= 0 {
			return fmt.Errorf("period must be > 0, got %v", period)
		}
		b.sweepDelay = initialDelay
		b.sweepPeriod = period
		return nil
	}
}

// WithSweepPolicy sets what a sweep does with stale pending messages.
// Default: SweepRedeliver.
func WithSweepPolicy(policy SweepPolicy) Option {
	return func(b *Broker) error {
		if policy != SweepRedeliver && policy != SweepReportOnly {
			return fmt.Errorf("unknown sweep policy %d", policy)
		}
		b.sweepPolicy = policy
		return nil
	}
}

// WithRetryStrategy sets the redelivery pacing used by sweeps.
// Default: retry.DefaultStrategy().
func WithRetryStrategy(strategy retry.Strategy) Option {
	return func(b *Broker) error {
		if err := strategy.Validate(); err != nil {
			return err
		}
		b.retryStrategy = strategy
		return nil
	}
}

// WithRetention makes sweeps drop consumed messages older than d.
// Zero disables pruning (the default). Pending messages are never pruned.
func WithRetention(d time.Duration) Option {
	return func(b *Broker) error {
		if d < 0 {
			return fmt.Errorf("retention must be >= 0, got %v", d)
		}
		b.retention = d
		return nil
	}
}

// WithMissingMessagePolicy configures the default store's handling of an
// unknown message id in MarkConsumed. Default: MissingMessageFail.
func WithMissingMessagePolicy(policy MissingMessagePolicy) Option {
	return func(b *Broker) error {
		b.missing = policy
		return nil
	}
}

// WithMetrics sets the metrics recorder. Default: NoopMetrics.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(b *Broker) error {
		if metrics == nil {
			return fmt.Errorf("metrics recorder cannot be nil")
		}
		b.metrics = metrics
		return nil
	}
}

// WithAuditSink sets where consumption and sweep records are written.
// Default: NoOpAuditSink.
func WithAuditSink(sink AuditSink) Option {
	return func(b *Broker) error {
		if sink == nil {
			return fmt.Errorf("audit sink cannot be nil")
		}
		b.auditSink = sink
		return nil
	}
}

// WithAuditBuffer sets how many audit records may wait for the sink.
// Default: 1024. Records beyond the buffer are dropped.
func WithAuditBuffer(size int) Option {
	return func(b *Broker) error {
		if size <= 0 {
			return fmt.Errorf("audit buffer must be > 0, got %d", size)
		}
		b.auditBuffer = size
		return nil
	}
}
