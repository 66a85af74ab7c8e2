package relica

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coregx/broker"
)

// ApplyMigrations creates the audit tables for driverName with the given table prefix.
// Every statement is idempotent, so running it on an existing schema is safe.
func ApplyMigrations(ctx context.Context, db *sql.DB, driverName, prefix string) error {
	statements, err := broker.MigrationStatements(driverName, prefix)
	if err != nil {
		return err
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return broker.NewErrorWithCause(broker.ErrCodeDatabase,
				fmt.Sprintf("failed to apply migration statement %d", i+1), err)
		}
	}
	return nil
}
