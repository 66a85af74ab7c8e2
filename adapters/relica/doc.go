// Package relica provides the SQL audit trail of the broker using the Relica
// query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies.
//
// AuditRepository implements broker.AuditRepository on MySQL, PostgreSQL or SQLite.
// ApplyMigrations creates its tables from the schema embedded in the broker package.
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/broker"
//	    "github.com/coregx/broker/adapters/relica"
//	    _ "github.com/mattn/go-sqlite3"
//	)
//
//	db, err := sql.Open("sqlite3", "audit.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// driverName should be "mysql", "postgres", or "sqlite3"
//	if err := relica.ApplyMigrations(ctx, db, "sqlite3", "broker_"); err != nil {
//	    log.Fatal(err)
//	}
//
//	b, err := broker.NewBroker(
//	    broker.WithAuditSink(relica.NewAuditRepository(db, "sqlite3")),
//	)
package relica
