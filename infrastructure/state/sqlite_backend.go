package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteBackend is a PersistenceBackend over a plain key/value table in
// an already-open sqlite handle (see internal/platform/database.Open).
// Unlike MemoryBackend it survives a process restart, which is what
// lets internal/worldmodel.NewWithPersistence carry context memory
// across runs.
type SQLiteBackend struct {
	db    *sql.DB
	table string
}

// NewSQLiteBackend wraps db, creating table (default "state_kv") if it
// doesn't already exist.
func NewSQLiteBackend(ctx context.Context, db *sql.DB, table string) (*SQLiteBackend, error) {
	if table == "" {
		table = "state_kv"
	}
	b := &SQLiteBackend{db: db, table: table}
	_, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value BLOB NOT NULL)`, table))
	if err != nil {
		return nil, fmt.Errorf("state: create %s table: %w", table, err)
	}
	return b, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, b.table),
		key, data)
	if err != nil {
		return fmt.Errorf("state: save %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, b.table), key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("state: load %s: %w", key, err)
	}
	return data, nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, b.table), key)
	if err != nil {
		return fmt.Errorf("state: delete %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`SELECT key FROM %s WHERE key LIKE ?`, b.table), prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("state: list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("state: scan key: %w", err)
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

func (b *SQLiteBackend) Close(ctx context.Context) error {
	return nil
}
