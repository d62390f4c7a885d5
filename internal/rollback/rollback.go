// Package rollback implements the Rollback Engine (C10, §4.10): a
// trash/backup-backed undo log that lets a failed multi-step command
// be reversed without touching anything a later, unrelated command has
// since produced. internal/graph depends on this package's shape
// through its own RollbackRegistrar interface, not the other way
// around — Engine satisfies that interface structurally.
package rollback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/deskagent/agent/internal/domain"
)

// Result summarises one command's rollback run.
type Result struct {
	CommandID       string
	Success         bool
	RolledBackCount int
	FailedCount     int
	Errors          []string
}

// Engine owns the on-disk trash/backup layout and the persisted undo
// registry (§4.10): "./.trash/<cmd_id>/", "./.backup/<cmd_id>/" and
// "./.rollback_registry.json" under dataDir.
type Engine struct {
	mu           sync.Mutex
	trashDir     string
	backupDir    string
	registryPath string
	records      map[string][]*domain.RollbackRecord
}

// New creates (if absent) the trash and backup directories under
// dataDir and loads any previously persisted registry.
func New(dataDir string) (*Engine, error) {
	e := &Engine{
		trashDir:     filepath.Join(dataDir, ".trash"),
		backupDir:    filepath.Join(dataDir, ".backup"),
		registryPath: filepath.Join(dataDir, ".rollback_registry.json"),
		records:      make(map[string][]*domain.RollbackRecord),
	}
	if err := os.MkdirAll(e.trashDir, 0o755); err != nil {
		return nil, fmt.Errorf("rollback: create trash dir: %w", err)
	}
	if err := os.MkdirAll(e.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("rollback: create backup dir: %w", err)
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) load() error {
	data, err := os.ReadFile(e.registryPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rollback: read registry: %w", err)
	}
	decoded := make(map[string][]*domain.RollbackRecord)
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("rollback: decode registry: %w", err)
	}
	e.records = decoded
	return nil
}

// save persists the registry; callers hold e.mu.
func (e *Engine) save() error {
	data, err := json.MarshalIndent(e.records, "", "  ")
	if err != nil {
		return fmt.Errorf("rollback: encode registry: %w", err)
	}
	if err := os.WriteFile(e.registryPath, data, 0o644); err != nil {
		return fmt.Errorf("rollback: write registry: %w", err)
	}
	return nil
}

// Register records a reversible effect for cmdID. OriginalPath is
// read out of data["path"], falling back to data["origin"] for the
// move/rename rollback types; BackupPath comes from
// data["backup_path"] when the action produced one.
func (e *Engine) Register(_ context.Context, cmdID, nodeID string, intent domain.Intent, rollbackType domain.RollbackType, data map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	original := data["path"]
	if original == "" {
		original = data["origin"]
	}

	metadata := make(map[string]string, len(data))
	for k, v := range data {
		metadata[k] = v
	}

	e.records[cmdID] = append(e.records[cmdID], &domain.RollbackRecord{
		CommandID:    cmdID,
		NodeID:       nodeID,
		Intent:       intent,
		OriginalPath: original,
		BackupPath:   data["backup_path"],
		Type:         rollbackType,
		Metadata:     metadata,
	})
	return e.save()
}

// MoveToTrash relocates path into a per-command trash subdirectory,
// prefixing the basename with an "HHMMSS_" timestamp so repeated
// deletes of the same name never collide (§4.10).
func (e *Engine) MoveToTrash(_ context.Context, cmdID, path string) (string, error) {
	cmdTrash := filepath.Join(e.trashDir, cmdID)
	if err := os.MkdirAll(cmdTrash, 0o755); err != nil {
		return "", fmt.Errorf("rollback: create trash dir for %s: %w", cmdID, err)
	}

	trashPath := filepath.Join(cmdTrash, time.Now().Format("150405")+"_"+filepath.Base(path))
	if err := moveOrCopy(path, trashPath); err != nil {
		return "", fmt.Errorf("rollback: move %s to trash: %w", path, err)
	}
	return trashPath, nil
}

// CreateBackup deep-copies path (file or directory) into a
// per-command backup subdirectory before it is overwritten (§4.10).
func (e *Engine) CreateBackup(_ context.Context, cmdID, path string) (string, error) {
	cmdBackup := filepath.Join(e.backupDir, cmdID)
	if err := os.MkdirAll(cmdBackup, 0o755); err != nil {
		return "", fmt.Errorf("rollback: create backup dir for %s: %w", cmdID, err)
	}

	backupPath := filepath.Join(cmdBackup, filepath.Base(path))
	if err := copyPath(path, backupPath); err != nil {
		return "", fmt.Errorf("rollback: back up %s: %w", path, err)
	}
	return backupPath, nil
}

// Rollback undoes every not-yet-executed record for cmdID in reverse
// insertion order, dispatching on each record's rollback type
// (§4.10). A record is marked executed on success whether or not
// earlier or later records in the same run fail.
func (e *Engine) Rollback(_ context.Context, cmdID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := e.records[cmdID]
	if len(records) == 0 {
		return Result{CommandID: cmdID, Success: false, Errors: []string{"no rollback records found"}}
	}

	var rolledBack, failed int
	var errs []string

	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		if record.Executed {
			continue
		}
		if err := e.executeOne(record); err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("node %s (%s): %v", record.NodeID, record.Type, err))
			continue
		}
		record.Executed = true
		rolledBack++
	}

	_ = e.save()
	return Result{CommandID: cmdID, Success: failed == 0, RolledBackCount: rolledBack, FailedCount: failed, Errors: errs}
}

func (e *Engine) executeOne(record *domain.RollbackRecord) error {
	switch record.Type {
	case domain.RollbackTypeDelete:
		if _, err := os.Stat(record.OriginalPath); err != nil {
			return nil
		}
		return os.RemoveAll(record.OriginalPath)

	case domain.RollbackTypeRestore:
		if record.BackupPath == "" {
			return errors.New("no trashed copy to restore")
		}
		return moveOrCopy(record.BackupPath, record.OriginalPath)

	case domain.RollbackTypeMoveBack:
		dest := record.Metadata["destination"]
		if dest == "" {
			return errors.New("no destination recorded")
		}
		return moveOrCopy(dest, record.OriginalPath)

	case domain.RollbackTypeRenameBack:
		dest := record.Metadata["destination"]
		if dest == "" {
			return errors.New("no renamed path recorded")
		}
		return os.Rename(dest, record.OriginalPath)

	case domain.RollbackTypeRestoreMany:
		raw := record.Metadata["moves"]
		if raw == "" {
			return errors.New("no moved-file list recorded")
		}
		var moves []domain.MovedFile
		if err := json.Unmarshal([]byte(raw), &moves); err != nil {
			return fmt.Errorf("decode moved-file list: %w", err)
		}
		var errs []string
		for i := len(moves) - 1; i >= 0; i-- {
			if err := moveOrCopy(moves[i].Destination, moves[i].Origin); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", moves[i].Origin, err))
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("restore %d/%d moved files failed: %s", len(errs), len(moves), strings.Join(errs, "; "))
		}
		return nil

	case domain.RollbackTypeRestoreBackup:
		if record.BackupPath == "" {
			return errors.New("no backup to restore")
		}
		if _, err := os.Stat(record.OriginalPath); err == nil {
			if err := os.RemoveAll(record.OriginalPath); err != nil {
				return err
			}
		}
		return copyPath(record.BackupPath, record.OriginalPath)

	default:
		return fmt.Errorf("unknown rollback type %q", record.Type)
	}
}

// Records returns cmdID's rollback records in insertion order.
func (e *Engine) Records(cmdID string) []*domain.RollbackRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*domain.RollbackRecord{}, e.records[cmdID]...)
}

// HasRollback reports whether cmdID has any not-yet-executed record.
func (e *Engine) HasRollback(cmdID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.records[cmdID] {
		if !r.Executed {
			return true
		}
	}
	return false
}

// TrashSize returns the total byte size of everything currently in
// the trash directory, across all commands.
func (e *Engine) TrashSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(e.trashDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rollback: walk trash dir: %w", err)
	}
	return total, nil
}

// ClearTrash removes trash subdirectories older than olderThanDays by
// modification time, returning how many were removed (§4.10).
func (e *Engine) ClearTrash(olderThanDays int) (int, error) {
	entries, err := os.ReadDir(e.trashDir)
	if err != nil {
		return 0, fmt.Errorf("rollback: list trash dir: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	var deleted int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(e.trashDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(path); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

// moveOrCopy renames src to dst, falling back to a deep copy plus
// delete when they straddle filesystems (rename across devices always
// fails on Linux).
func moveOrCopy(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyPath(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyTree(src, dst)
	}
	return copyFile(src, dst, info.Mode())
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}
