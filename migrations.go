package broker

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// MigrationFiles contains the audit-trail schema, one directory per SQL dialect:
//
//	migrations/sqlite3/*.sql
//	migrations/mysql/*.sql
//	migrations/postgres/*.sql
//
// Table names contain a {{prefix}} placeholder. adapters/relica.ApplyMigrations
// substitutes it and runs the files; MigrationStatements exposes the same
// statements for other migration tools.
//
//go:embed migrations
var MigrationFiles embed.FS

// MigrationPrefixPlaceholder is replaced by the table prefix in every migration.
const MigrationPrefixPlaceholder = "{{prefix}}"

// MigrationStatements returns the statements for driverName ("sqlite3", "mysql"
// or "postgres") in file order, with the table prefix substituted.
func MigrationStatements(driverName, prefix string) ([]string, error) {
	dir := "migrations/" + driverName
	entries, err := fs.ReadDir(MigrationFiles, dir)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeConfiguration, fmt.Sprintf("no migrations for driver %q", driverName), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var statements []string
	for _, name := range names {
		raw, err := fs.ReadFile(MigrationFiles, dir+"/"+name)
		if err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to read migration "+name, err)
		}
		body := strings.ReplaceAll(string(raw), MigrationPrefixPlaceholder, prefix)
		for _, stmt := range strings.Split(body, ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				statements = append(statements, stmt)
			}
		}
	}
	return statements, nil
}
