package model

import "time"

// ConsumptionOutcome is the result of a single consumption attempt.
type ConsumptionOutcome string

const (
	// OutcomeConsumed indicates the attempt marked the message consumed (or found it already consumed).
	OutcomeConsumed ConsumptionOutcome = "consumed"

	// OutcomeExpired indicates the message was past its TTL.
	OutcomeExpired ConsumptionOutcome = "expired"

	// OutcomeNotFound indicates the topic or message was unknown to the store.
	OutcomeNotFound ConsumptionOutcome = "not_found"

	// OutcomeRejected covers every other failure (nil message, store error).
	OutcomeRejected ConsumptionOutcome = "rejected"
)

// ConsumptionRecord is the audit entry written for every consumption attempt.
// Records are export-only; nothing is ever reloaded into the broker from them.
type ConsumptionRecord struct {
	ID          int64              `json:"id" db:"id"`
	Topic       string             `json:"topic" db:"topic"`
	MessageID   string             `json:"messageID" db:"message_id"`
	Consumer    string             `json:"consumer" db:"consumer"`
	Outcome     ConsumptionOutcome `json:"outcome" db:"outcome"`
	Reason      string             `json:"reason" db:"reason"`
	AttemptedAt time.Time          `json:"attemptedAt" db:"attempted_at"`
}

// TableName returns the database table name for ConsumptionRecord.
func (r ConsumptionRecord) TableName() string {
	return tablePrefix + "consumption_log"
}

// NewConsumptionRecord creates an audit entry for one attempt.
// A nil err with OutcomeConsumed is the success case; err is only rendered into Reason.
func NewConsumptionRecord(topic, messageID, consumer string, outcome ConsumptionOutcome, err error, at time.Time) ConsumptionRecord {
	rec := ConsumptionRecord{
		Topic:       topic,
		MessageID:   messageID,
		Consumer:    consumer,
		Outcome:     outcome,
		AttemptedAt: at,
	}
	if err != nil {
		rec.Reason = err.Error()
	}
	return rec
}

// IsSuccess reports whether the attempt consumed the message.
func (r ConsumptionRecord) IsSuccess() bool {
	return r.Outcome == OutcomeConsumed
}

// SweepRecord is the audit entry written for every topic visited by a sweep.
type SweepRecord struct {
	ID          int64     `json:"id" db:"id"`
	Topic       string    `json:"topic" db:"topic"`
	Pending     int       `json:"pending" db:"pending"`
	Expired     int       `json:"expired" db:"expired"`
	Redelivered int       `json:"redelivered" db:"redelivered"`
	Exhausted   int       `json:"exhausted" db:"exhausted"`
	Pruned      int       `json:"pruned" db:"pruned"`
	SweptAt     time.Time `json:"sweptAt" db:"swept_at"`
}

// TableName returns the database table name for SweepRecord.
func (r SweepRecord) TableName() string {
	return tablePrefix + "sweep_log"
}
