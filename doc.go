// Package broker provides an in-memory topic broker for Go: named topics,
// producers that publish text messages to them and consumers that mark
// messages consumed as they receive fan-outs.
//
// Works both as a library for embedding in your application AND as a standalone
// HTTP service (cmd/broker-server).
//
// # Features
//
//   - Named topics with an idempotent, name-keyed subscriber set
//   - Asynchronous fan-out on a bounded worker pool; publishing never waits on subscribers
//   - Per-topic locking: traffic on one topic never waits on another
//   - Five-minute message TTL; expired messages cannot be consumed
//   - Background sweep with paced redelivery of pending messages (base 30s, x2, max 2m)
//   - Optional retention of consumed messages
//   - Optional audit trail of consumption attempts and sweeps in MySQL, PostgreSQL or SQLite
//     via Relica adapters, with embedded migrations
//   - Pluggable Logger (zerolog adapter) and MetricsRecorder (Prometheus adapter)
//   - Options Pattern configuration
//
// # Quick Start
//
// Create a broker, a topic and a subscribed consumer:
//
//	b, err := broker.NewBroker(broker.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	if _, err := b.CreateTopic("orders"); err != nil {
//	    log.Fatal(err)
//	}
//
//	consumer, _ := b.NewConsumer("C1", "orders")
//	_ = b.Subscribe("orders", consumer)
//
// Publish through a producer:
//
//	producer, _ := b.NewProducer("P1", "orders")
//	msg, err := producer.Send("hello")
//
// Once the fan-out ran, the message is listed as consumed:
//
//	consumed, _ := b.ListConsumed("orders") // [msg], consumed by C1
//
// Start the background sweep:
//
//	b.ScheduleNotifications(ctx) // first sweep after 2m, then every minute
//
// # Audit Trail
//
// Consumption attempts and sweep summaries can be exported to SQL:
//
//	db, _ := sql.Open("sqlite3", "audit.db")
//	if err := relica.ApplyMigrations(ctx, db, "sqlite3", relica.DefaultTablePrefix); err != nil {
//	    log.Fatal(err)
//	}
//	repo := relica.NewAuditRepository(db, "sqlite3")
//	b, _ := broker.NewBroker(broker.WithAuditSink(repo))
//
// The trail is written from a background goroutine; Close flushes it.
//
// # Error Handling
//
// All errors are *Error values with a code. Compare with errors.Is against
// the exported sentinels:
//
//	if errors.Is(err, broker.ErrDuplicateTopic) {
//	    // name already registered
//	}
//
// # Thread Safety
//
// Broker, Topic, Producer, Consumer and MemoryStore are safe for concurrent use.
// A subscriber may be called concurrently for different messages.
package broker
