package broker

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coregx/broker/model"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSubscriber remembers every message it receives and answers with result.
type recordingSubscriber struct {
	name   string
	result bool

	mu       sync.Mutex
	received []*model.Message
	calls    atomic.Int32
}

func newRecordingSubscriber(name string, result bool) *recordingSubscriber {
	return &recordingSubscriber{name: name, result: result}
}

func (s *recordingSubscriber) Name() string { return s.name }

func (s *recordingSubscriber) Consume(m *model.Message) bool {
	s.mu.Lock()
	s.received = append(s.received, m)
	s.mu.Unlock()
	s.calls.Add(1)
	return s.result
}

func (s *recordingSubscriber) Received() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Message, len(s.received))
	copy(out, s.received)
	return out
}

// blockingSubscriber parks every delivery until release is closed.
type blockingSubscriber struct {
	name    string
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func newBlockingSubscriber(name string) *blockingSubscriber {
	return &blockingSubscriber{name: name, release: make(chan struct{}), started: make(chan struct{})}
}

func (s *blockingSubscriber) Name() string { return s.name }

func (s *blockingSubscriber) Consume(*model.Message) bool {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return true
}

// captureLogger keeps formatted log lines by level.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *captureLogger) Debugf(format string, args ...interface{}) { l.add("DEBUG", format, args...) }
func (l *captureLogger) Infof(format string, args ...interface{})  { l.add("INFO", format, args...) }
func (l *captureLogger) Warnf(format string, args ...interface{})  { l.add("WARN", format, args...) }
func (l *captureLogger) Errorf(format string, args ...interface{}) { l.add("ERROR", format, args...) }
func (l *captureLogger) Info(message string)                       { l.add("INFO", "%s", message) }

// Contains reports whether some line has the level and contains substr.
func (l *captureLogger) Contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+" ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// countingMetrics counts every recorder call.
type countingMetrics struct {
	mu           sync.Mutex
	published    map[string]int
	outcomes     map[model.ConsumptionOutcome]int
	dropped      int
	auditDropped int
	sweeps       []SweepReport
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		published: make(map[string]int),
		outcomes:  make(map[model.ConsumptionOutcome]int),
	}
}

func (m *countingMetrics) MessagePublished(topic string) {
	m.mu.Lock()
	m.published[topic]++
	m.mu.Unlock()
}

func (m *countingMetrics) ConsumeAttempt(_ string, outcome model.ConsumptionOutcome) {
	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

func (m *countingMetrics) DeliveryDropped(string) {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

func (m *countingMetrics) SweepCompleted(r SweepReport) {
	m.mu.Lock()
	m.sweeps = append(m.sweeps, r)
	m.mu.Unlock()
}

func (m *countingMetrics) AuditDropped() {
	m.mu.Lock()
	m.auditDropped++
	m.mu.Unlock()
}

func (m *countingMetrics) Outcome(o model.ConsumptionOutcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[o]
}

func (m *countingMetrics) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// newTestBroker creates a broker on a fake clock and closes it with the test.
func newTestBroker(t *testing.T, opts ...Option) (*Broker, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	b, err := NewBroker(append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, clock
}
