package rollback

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	e, err := New(dir)
	require.NoError(t, err)
	return e, dir
}

func TestNewCreatesTrashAndBackupDirs(t *testing.T) {
	_, dir := newTestEngine(t)
	assert.DirExists(t, filepath.Join(dir, ".trash"))
	assert.DirExists(t, filepath.Join(dir, ".backup"))
}

func TestMoveToTrashThenRestoreDelete(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()

	original := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(original, []byte("hello"), 0o644))

	trashPath, err := e.MoveToTrash(ctx, "CMD-1", original)
	require.NoError(t, err)
	assert.FileExists(t, trashPath)
	assert.NoFileExists(t, original)

	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentWriteFile, domain.RollbackTypeRestore, map[string]string{"path": original, "backup_path": trashPath}))

	result := e.Rollback(ctx, "CMD-1")
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RolledBackCount)
	assert.FileExists(t, original)

	content, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestCreateBackupThenRestoreBackup(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()

	original := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(original, []byte("v1"), 0o644))

	backupPath, err := e.CreateBackup(ctx, "CMD-1", original)
	require.NoError(t, err)
	assert.FileExists(t, backupPath)

	require.NoError(t, os.WriteFile(original, []byte("v2-broken"), 0o644))
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentWriteFile, domain.RollbackTypeRestoreBackup, map[string]string{"path": original, "backup_path": backupPath}))

	result := e.Rollback(ctx, "CMD-1")
	assert.True(t, result.Success)

	content, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))
}

func TestRollbackDeleteRemovesCreatedPath(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()

	created := filepath.Join(dir, "photos")
	require.NoError(t, os.MkdirAll(created, 0o755))
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentDelete, domain.RollbackTypeDelete, map[string]string{"path": created}))

	result := e.Rollback(ctx, "CMD-1")
	assert.True(t, result.Success)
	assert.NoDirExists(t, created)
}

func TestRollbackMoveBackRestoresOrigin(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()

	origin := filepath.Join(dir, "a.txt")
	dest := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(origin, []byte("x"), 0o644))
	require.NoError(t, os.Rename(origin, dest))
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentMove, domain.RollbackTypeMoveBack, map[string]string{"origin": origin, "destination": dest}))

	result := e.Rollback(ctx, "CMD-1")
	assert.True(t, result.Success)
	assert.FileExists(t, origin)
	assert.NoFileExists(t, dest)
}

func TestRollbackRenameBackRestoresOriginalName(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()

	origin := filepath.Join(dir, "old.txt")
	dest := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(origin, []byte("x"), 0o644))
	require.NoError(t, os.Rename(origin, dest))
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentRename, domain.RollbackTypeRenameBack, map[string]string{"origin": origin, "destination": dest}))

	result := e.Rollback(ctx, "CMD-1")
	assert.True(t, result.Success)
	assert.FileExists(t, origin)
}

func TestRollbackProcessesInReverseInsertionOrder(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()

	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")
	require.NoError(t, os.MkdirAll(first, 0o755))
	require.NoError(t, os.MkdirAll(second, 0o755))

	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentDelete, domain.RollbackTypeDelete, map[string]string{"path": first}))
	require.NoError(t, e.Register(ctx, "CMD-1", "node-1", domain.IntentDelete, domain.RollbackTypeDelete, map[string]string{"path": second}))

	result := e.Rollback(ctx, "CMD-1")
	require.True(t, result.Success)
	assert.Equal(t, 2, result.RolledBackCount)

	records := e.Records("CMD-1")
	assert.True(t, records[0].Executed)
	assert.True(t, records[1].Executed)
}

func TestRollbackRestoreManyMovesEveryFileBack(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()

	source := filepath.Join(dir, "downloads")
	dest := filepath.Join(dir, "documents", "Cleaned")
	require.NoError(t, os.MkdirAll(source, 0o755))
	require.NoError(t, os.MkdirAll(dest, 0o755))

	origins := []string{filepath.Join(source, "a.pdf"), filepath.Join(source, "b.pdf")}
	destinations := []string{filepath.Join(dest, "a.pdf"), filepath.Join(dest, "b.pdf")}
	for i, origin := range origins {
		require.NoError(t, os.WriteFile(origin, []byte("x"), 0o644))
		require.NoError(t, os.Rename(origin, destinations[i]))
	}

	moves := []domain.MovedFile{
		{Origin: origins[0], Destination: destinations[0]},
		{Origin: origins[1], Destination: destinations[1]},
	}
	encoded, err := json.Marshal(moves)
	require.NoError(t, err)
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentClean, domain.RollbackTypeRestoreMany, map[string]string{"moves": string(encoded)}))

	result := e.Rollback(ctx, "CMD-1")
	require.True(t, result.Success)
	assert.FileExists(t, origins[0])
	assert.FileExists(t, origins[1])
	assert.NoFileExists(t, destinations[0])
	assert.NoFileExists(t, destinations[1])
}

func TestRollbackRestoreManyWithNoMovesFails(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentClean, domain.RollbackTypeRestoreMany, map[string]string{}))

	result := e.Rollback(ctx, "CMD-1")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
}

func TestRollbackWithNoRecordsFails(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.Rollback(context.Background(), "CMD-NONE")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
}

func TestHasRollbackReflectsExecutedState(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()
	path := filepath.Join(dir, "x")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentDelete, domain.RollbackTypeDelete, map[string]string{"path": path}))

	assert.True(t, e.HasRollback("CMD-1"))
	e.Rollback(ctx, "CMD-1")
	assert.False(t, e.HasRollback("CMD-1"))
}

func TestRegisterPersistsAcrossEngineRestart(t *testing.T) {
	e, dir := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Register(ctx, "CMD-1", "node-0", domain.IntentDelete, domain.RollbackTypeDelete, map[string]string{"path": "/tmp/whatever"}))

	reopened, err := New(dir)
	require.NoError(t, err)
	assert.Len(t, reopened.Records("CMD-1"), 1)
}

func TestClearTrashRemovesOnlyOldSubdirectories(t *testing.T) {
	e, dir := newTestEngine(t)

	oldCmd := filepath.Join(dir, ".trash", "CMD-OLD")
	newCmd := filepath.Join(dir, ".trash", "CMD-NEW")
	require.NoError(t, os.MkdirAll(oldCmd, 0o755))
	require.NoError(t, os.MkdirAll(newCmd, 0o755))

	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldCmd, old, old))

	deleted, err := e.ClearTrash(7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoDirExists(t, oldCmd)
	assert.DirExists(t, newCmd)
}
