package broker

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coregx/broker/model"
)

// delivery is one fan-out task: hand message to one subscriber.
type delivery struct {
	topic      string
	subscriber Subscriber
	message    *model.Message
}

// dispatcher runs fan-out tasks on a fixed pool of workers fed by a bounded queue.
// submit never blocks; a full queue rejects the task.
type dispatcher struct {
	jobs    chan delivery
	logger  Logger
	metrics MetricsRecorder
	group   errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func newDispatcher(workers, queueSize int, logger Logger, metrics MetricsRecorder) *dispatcher {
	d := &dispatcher{
		jobs:    make(chan delivery, queueSize),
		logger:  logger,
		metrics: metrics,
	}
	for i := 0; i < workers; i++ {
		d.group.Go(func() error {
			for job := range d.jobs {
				d.run(job)
			}
			return nil
		})
	}
	return d
}

// submit queues job and reports whether it was accepted.
func (d *dispatcher) submit(job delivery) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

// pending returns the number of queued tasks not yet picked up by a worker.
func (d *dispatcher) pending() int {
	return len(d.jobs)
}

func (d *dispatcher) run(job delivery) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("Subscriber %s panicked on message %s (topic=%s): %v",
				job.subscriber.Name(), job.message.ID, job.topic, r)
			d.metrics.ConsumeAttempt(job.topic, model.OutcomeRejected)
		}
	}()

	ok := job.subscriber.Consume(job.message)
	d.logger.Debugf("Delivered message %s to %s (topic=%s): consumed=%t",
		job.message.ID, job.subscriber.Name(), job.topic, ok)
}

// close stops accepting tasks, lets the workers drain the queue and waits for them.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	_ = d.group.Wait()
}
