package broker

import (
	"context"

	"github.com/coregx/broker/model"
)

// AuditRepository is an AuditSink that can also be queried.
// The SQL adapter in adapters/relica implements it.
//
// Implementations must be safe for concurrent use.
type AuditRepository interface {
	AuditSink

	// FindByMessageID returns every consumption attempt of a message, oldest first.
	// Returns ErrNoData if there is none.
	FindByMessageID(ctx context.Context, messageID string) ([]model.ConsumptionRecord, error)

	// FindByTopic returns the latest consumption attempts of a topic, newest first.
	// Returns ErrNoData if there is none.
	FindByTopic(ctx context.Context, topic string, limit int) ([]model.ConsumptionRecord, error)

	// FindSweeps returns the latest sweep records of a topic, newest first.
	// Returns ErrNoData if there is none.
	FindSweeps(ctx context.Context, topic string, limit int) ([]model.SweepRecord, error)
}
