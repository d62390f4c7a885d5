// Package database opens the agent's sqlite-backed stores and applies
// their schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	core "github.com/deskagent/agent/internal/app/core/service"
	"github.com/deskagent/agent/internal/platform/migrations"
)

// Open establishes a sqlite connection at path, creating its parent
// directory if necessary, verifies connectivity with a ping, and
// applies the embedded schema when migrate is true.
func Open(ctx context.Context, path string, migrate bool) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows exactly one writer at a time; a single open
	// connection avoids SQLITE_BUSY under our own WAL pragma.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	// Two sqlite stores (learning.db, jarvis.db) open back-to-back at
	// startup can transiently race on the data directory right after
	// os.MkdirAll; a couple of quick retries absorb that without
	// surfacing a spurious failure to the composition root.
	pingPolicy := core.RetryPolicy{Attempts: 3, InitialBackoff: 50 * time.Millisecond, MaxBackoff: 500 * time.Millisecond, Multiplier: 2}
	if err := core.Retry(pingCtx, pingPolicy, func() error { return db.PingContext(pingCtx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if migrate {
		if err := migrations.Apply(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	return db, nil
}
