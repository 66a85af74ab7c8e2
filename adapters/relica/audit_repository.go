package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/broker"
	"github.com/coregx/broker/model"
	"github.com/coregx/relica"
)

// DefaultTablePrefix is the prefix used by NewAuditRepository.
const DefaultTablePrefix = "broker_"

// AuditRepository implements broker.AuditRepository using Relica.
type AuditRepository struct {
	db          *relica.DB
	tablePrefix string
}

var _ broker.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository creates a new AuditRepository with default table prefix.
func NewAuditRepository(sqlDB *sql.DB, driverName string) *AuditRepository {
	return NewAuditRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewAuditRepositoryWithPrefix creates a new AuditRepository with custom table prefix.
func NewAuditRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *AuditRepository {
	return &AuditRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *AuditRepository) consumptionTable() string {
	return r.tablePrefix + "consumption_log"
}

func (r *AuditRepository) sweepTable() string {
	return r.tablePrefix + "sweep_log"
}

// RecordConsumption inserts a consumption record.
func (r *AuditRepository) RecordConsumption(ctx context.Context, record model.ConsumptionRecord) error {
	record.ID = 0
	err := r.db.WithContext(ctx).Model(&record).Table(r.consumptionTable()).Insert()
	if err != nil {
		return broker.NewErrorWithCause(broker.ErrCodeDatabase, "failed to insert consumption record", err)
	}
	return nil
}

// RecordSweep inserts a sweep record.
func (r *AuditRepository) RecordSweep(ctx context.Context, record model.SweepRecord) error {
	record.ID = 0
	err := r.db.WithContext(ctx).Model(&record).Table(r.sweepTable()).Insert()
	if err != nil {
		return broker.NewErrorWithCause(broker.ErrCodeDatabase, "failed to insert sweep record", err)
	}
	return nil
}

// FindByMessageID retrieves every consumption attempt of a message, oldest first.
func (r *AuditRepository) FindByMessageID(ctx context.Context, messageID string) ([]model.ConsumptionRecord, error) {
	var records []model.ConsumptionRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.consumptionTable()).
		Where("message_id = ?", messageID).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&records)

	if err != nil {
		return nil, broker.NewErrorWithCause(broker.ErrCodeDatabase, "failed to find consumption records by message", err)
	}
	if len(records) == 0 {
		return nil, broker.ErrNoData
	}
	return records, nil
}

// FindByTopic retrieves the latest consumption attempts of a topic, newest first.
func (r *AuditRepository) FindByTopic(ctx context.Context, topic string, limit int) ([]model.ConsumptionRecord, error) {
	var records []model.ConsumptionRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.consumptionTable()).
		Where("topic = ?", topic).
		OrderBy("id DESC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&records)

	if err != nil {
		return nil, broker.NewErrorWithCause(broker.ErrCodeDatabase, "failed to find consumption records by topic", err)
	}
	if len(records) == 0 {
		return nil, broker.ErrNoData
	}
	return records, nil
}

// FindSweeps retrieves the latest sweep records of a topic, newest first.
func (r *AuditRepository) FindSweeps(ctx context.Context, topic string, limit int) ([]model.SweepRecord, error) {
	var records []model.SweepRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.sweepTable()).
		Where("topic = ?", topic).
		OrderBy("id DESC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&records)

	if err != nil {
		return nil, broker.NewErrorWithCause(broker.ErrCodeDatabase, "failed to find sweep records", err)
	}
	if len(records) == 0 {
		return nil, broker.ErrNoData
	}
	return records, nil
}

// LastConsumption retrieves the most recent consumption attempt of a message.
func (r *AuditRepository) LastConsumption(ctx context.Context, messageID string) (model.ConsumptionRecord, error) {
	var record model.ConsumptionRecord

	err := r.db.WithContext(ctx).Select("*").
		From(r.consumptionTable()).
		Where("message_id = ?", messageID).
		OrderBy("id DESC").
		Limit(1).
		WithContext(ctx).
		One(&record)

	if errors.Is(err, sql.ErrNoRows) {
		return record, broker.ErrNoData
	}
	if err != nil {
		return record, broker.NewErrorWithCause(broker.ErrCodeDatabase, "failed to load last consumption record", err)
	}
	return record, nil
}
