package graph

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/deskagent/agent/internal/domain"
)

// Result is what an Action reports back from Execute: values other
// nodes can read out of the runner's shared context, plus whatever
// the Rollback Engine needs to undo the effect.
type Result struct {
	Outputs      map[string]string
	RollbackType domain.RollbackType
	RollbackData map[string]string
}

// Trasher is the subset of the Rollback Engine (C10) an action needs
// to perform its own forward effect reversibly: Delete moves its
// target to trash instead of removing it outright, WriteFile backs up
// what it's about to overwrite. trash may be nil, in which case these
// actions fall back to an irreversible plain filesystem operation —
// the composition root always wires a real one; tests are the only
// caller that reasonably goes without.
type Trasher interface {
	MoveToTrash(ctx context.Context, cmdID, path string) (trashPath string, err error)
	CreateBackup(ctx context.Context, cmdID, path string) (backupPath string, err error)
}

// Action is the capability every executable node intent implements; a
// fixed small set of struct implementations are selected at graph
// build time rather than branching on Intent inside the runner.
type Action interface {
	Execute(ctx context.Context, cmdID string, node *domain.ExecutionNode, shared map[string]string, trash Trasher) (Result, error)
}

// ForIntent returns the Action implementation for intent, or nil if
// the runner has nothing registered for it (CONTROL/TERMINAL nodes and
// watch, which the Watcher Subsystem owns, are wired in separately by
// the composition root).
func ForIntent(intent domain.Intent) Action {
	switch intent {
	case domain.IntentCreateFolder:
		return CreateFolder{}
	case domain.IntentCreateFile:
		return CreateFile{}
	case domain.IntentWriteFile:
		return WriteFile{}
	case domain.IntentDelete:
		return Delete{}
	case domain.IntentMove:
		return Move{}
	case domain.IntentRename:
		return Rename{}
	case domain.IntentCopy:
		return Copy{}
	case domain.IntentClean:
		return Clean{}
	default:
		return nil
	}
}

func resolvedParamPath(node *domain.ExecutionNode) string {
	target := node.Params["target"]
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(node.Params["location"], target)
}

// CreateFolder makes the target directory (and any missing parents).
type CreateFolder struct{}

func (CreateFolder) Execute(_ context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	path := resolvedParamPath(node)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{}, fmt.Errorf("create_folder %s: %w", path, err)
	}
	return Result{
		Outputs:      map[string]string{"path": path},
		RollbackType: domain.RollbackTypeDelete,
		RollbackData: map[string]string{"path": path},
	}, nil
}

// CreateFile creates an empty target file, failing if it already
// exists (the write-requires-create rule's companion node always runs
// first, so this only ever sees a genuinely new path in practice).
type CreateFile struct{}

func (CreateFile) Execute(_ context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	path := resolvedParamPath(node)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("create_file %s: %w", path, err)
	}
	f.Close()
	return Result{
		Outputs:      map[string]string{"path": path},
		RollbackType: domain.RollbackTypeDelete,
		RollbackData: map[string]string{"path": path},
	}, nil
}

// WriteFile overwrites the target's contents with Params["content"],
// backing up whatever was there first so rollback can restore it.
type WriteFile struct{}

func (WriteFile) Execute(ctx context.Context, cmdID string, node *domain.ExecutionNode, _ map[string]string, trash Trasher) (Result, error) {
	path := resolvedParamPath(node)

	var backupPath string
	if _, err := os.Stat(path); err == nil && trash != nil {
		backupPath, err = trash.CreateBackup(ctx, cmdID, path)
		if err != nil {
			return Result{}, fmt.Errorf("write_file %s: backup: %w", path, err)
		}
	}

	if err := os.WriteFile(path, []byte(node.Params["content"]), 0o644); err != nil {
		return Result{}, fmt.Errorf("write_file %s: %w", path, err)
	}

	data := map[string]string{"path": path}
	if backupPath != "" {
		data["backup_path"] = backupPath
	}
	return Result{Outputs: map[string]string{"path": path}, RollbackType: domain.RollbackTypeRestoreBackup, RollbackData: data}, nil
}

// Delete moves the target to trash rather than removing it outright,
// so rollback can restore it exactly.
type Delete struct{}

func (Delete) Execute(ctx context.Context, cmdID string, node *domain.ExecutionNode, _ map[string]string, trash Trasher) (Result, error) {
	path := resolvedParamPath(node)
	if _, err := os.Stat(path); err != nil {
		return Result{}, fmt.Errorf("delete %s: %w", path, err)
	}

	var trashPath string
	var err error
	if trash != nil {
		trashPath, err = trash.MoveToTrash(ctx, cmdID, path)
	} else {
		err = os.RemoveAll(path)
	}
	if err != nil {
		return Result{}, fmt.Errorf("delete %s: %w", path, err)
	}

	data := map[string]string{"path": path}
	if trashPath != "" {
		data["backup_path"] = trashPath
	}
	return Result{Outputs: map[string]string{"path": path}, RollbackType: domain.RollbackTypeRestore, RollbackData: data}, nil
}

// Move relocates the target to Params["destination"].
type Move struct{}

func (Move) Execute(_ context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	src := resolvedParamPath(node)
	dst := node.Params["destination"]
	if err := os.Rename(src, dst); err != nil {
		return Result{}, fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	return Result{
		Outputs:      map[string]string{"path": dst},
		RollbackType: domain.RollbackTypeMoveBack,
		RollbackData: map[string]string{"origin": src, "destination": dst},
	}, nil
}

// Rename renames the target to Params["destination"] within the same
// directory.
type Rename struct{}

func (Rename) Execute(_ context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	src := resolvedParamPath(node)
	dst := filepath.Join(filepath.Dir(src), node.Params["destination"])
	if err := os.Rename(src, dst); err != nil {
		return Result{}, fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return Result{
		Outputs:      map[string]string{"path": dst},
		RollbackType: domain.RollbackTypeRenameBack,
		RollbackData: map[string]string{"origin": src, "destination": dst},
	}, nil
}

// Copy duplicates the target file to Params["destination"], leaving
// the source untouched; rollback of a copy only has to remove the new
// file, never restore the source.
type Copy struct{}

func (Copy) Execute(_ context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	src := resolvedParamPath(node)
	dst := node.Params["destination"]

	in, err := os.Open(src)
	if err != nil {
		return Result{}, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return Result{}, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return Result{
		Outputs:      map[string]string{"path": dst},
		RollbackType: domain.RollbackTypeDelete,
		RollbackData: map[string]string{"path": dst},
	}, nil
}
