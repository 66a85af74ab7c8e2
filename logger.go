package broker

import "fmt"

// Logger defines the logging interface used by the broker, its topics and
// its consumers. adapters/zerolog provides a zerolog-backed implementation.
//
// Example implementation on the standard library:
//
//	type StdLogger struct{}
//
//	func (StdLogger) Infof(format string, args ...interface{}) {
//	    log.Printf("[INFO] "+format, args...)
//	}
type Logger interface {
	// Debugf logs debug-level messages with printf-style formatting.
	Debugf(format string, args ...interface{})

	// Infof logs info-level messages with printf-style formatting.
	Infof(format string, args ...interface{})

	// Warnf logs warning-level messages with printf-style formatting.
	Warnf(format string, args ...interface{})

	// Errorf logs error-level messages with printf-style formatting.
	Errorf(format string, args ...interface{})

	// Info logs info-level messages without formatting.
	Info(message string)
}

// NoopLogger discards everything. It is the broker's default logger.
type NoopLogger struct{}

// Debugf implements Logger.Debugf as a no-op.
func (l *NoopLogger) Debugf(_ string, _ ...interface{}) {}

// Infof implements Logger.Infof as a no-op.
func (l *NoopLogger) Infof(_ string, _ ...interface{}) {}

// Warnf implements Logger.Warnf as a no-op.
func (l *NoopLogger) Warnf(_ string, _ ...interface{}) {}

// Errorf implements Logger.Errorf as a no-op.
func (l *NoopLogger) Errorf(_ string, _ ...interface{}) {}

// Info implements Logger.Info as a no-op.
func (l *NoopLogger) Info(_ string) {}

// prefixedLogger tags every line with a fixed "[key=value]" prefix.
type prefixedLogger struct {
	next   Logger
	prefix string
}

func withPrefix(next Logger, key, value string) Logger {
	return &prefixedLogger{next: next, prefix: fmt.Sprintf("[%s=%s] ", key, value)}
}

func (l *prefixedLogger) Debugf(format string, args ...interface{}) {
	l.next.Debugf(l.prefix+format, args...)
}

func (l *prefixedLogger) Infof(format string, args ...interface{}) {
	l.next.Infof(l.prefix+format, args...)
}

func (l *prefixedLogger) Warnf(format string, args ...interface{}) {
	l.next.Warnf(l.prefix+format, args...)
}

func (l *prefixedLogger) Errorf(format string, args ...interface{}) {
	l.next.Errorf(l.prefix+format, args...)
}

func (l *prefixedLogger) Info(message string) {
	l.next.Info(l.prefix + message)
}
