package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDataDirAndMigrates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "learning.db")

	db, err := Open(context.Background(), path, true)
	require.NoError(t, err)
	defer db.Close()

	var count int
	row := db.QueryRowContext(context.Background(),
		"SELECT count(*) FROM sqlite_master WHERE type='table' AND name='learning_patterns'")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", false)
	assert.Error(t, err)
}

func TestOpenWithoutMigrateSkipsSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.db")

	db, err := Open(context.Background(), path, false)
	require.NoError(t, err)
	defer db.Close()

	var count int
	row := db.QueryRowContext(context.Background(),
		"SELECT count(*) FROM sqlite_master WHERE type='table'")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 0, count)
}
