// Package migrations applies the agent's sqlite schema. There is no
// version-tracking table: every statement is idempotent
// (CREATE TABLE/INDEX IF NOT EXISTS), so Apply can run unconditionally
// on every startup against either the scheduler/registry store or the
// learning store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Apply executes every embedded .sql file, in name order, against db.
// Filenames are numerically prefixed (0001_, 0002_, ...) so ordering is
// stable regardless of directory-listing order.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
