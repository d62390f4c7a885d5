package graph

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/worldmodel"
)

// Launcher opens an application, file, or URL via the host OS's own
// "open" verb (§1: app-indexing/launch helpers are an external
// collaborator, reached only through this interface).
type Launcher interface {
	Open(ctx context.Context, target string) error
}

// Open runs Params["target"] as an application name or URL. Launching
// an external process has no rollback_type the Rollback Engine models
// (§1 Non-goals: "undoing operations that were not prepared for
// rollback (e.g. external app side effects)").
type Open struct {
	Launcher Launcher
}

func (o Open) Execute(ctx context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	target := node.Params["target"]
	if target == "" {
		return Result{}, fmt.Errorf("open: no target given")
	}
	if err := o.Launcher.Open(ctx, target); err != nil {
		return Result{}, err
	}
	return Result{Outputs: map[string]string{"target": target}}, nil
}

// OpenFile opens a specific file under Params["location"]/Params["target"]
// with the OS's default handler for its type, same irreversibility as
// Open.
type OpenFile struct {
	Launcher Launcher
}

func (o OpenFile) Execute(ctx context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	path := resolvedParamPath(node)
	if path == "" {
		return Result{}, fmt.Errorf("open_file: no target given")
	}
	if err := o.Launcher.Open(ctx, path); err != nil {
		return Result{}, err
	}
	return Result{Outputs: map[string]string{"path": path}}, nil
}

// Macro dispatches Params["cmd"] to one of the small fixed set of
// quick actions the original agent groups under "macro" (§3): a web or
// video search opened in the default browser, or a note written to
// disk. Keystroke-automation macros (the source's pyautogui-driven
// write_note) have no faithful cross-platform Go equivalent, so
// write_note instead creates the note as a file — reversible, unlike
// the other two.
type Macro struct {
	Launcher Launcher
}

func (m Macro) Execute(ctx context.Context, cmdID string, node *domain.ExecutionNode, shared map[string]string, trash Trasher) (Result, error) {
	query := node.Params["param"]
	switch node.Params["cmd"] {
	case "web_search":
		return m.search(ctx, "https://www.google.com/search?q=", query)
	case "youtube_search":
		return m.search(ctx, "https://www.youtube.com/results?search_query=", query)
	case "write_note":
		return m.writeNote(query)
	default:
		return Result{}, fmt.Errorf("macro: unsupported cmd %q", node.Params["cmd"])
	}
}

func (m Macro) search(ctx context.Context, base, query string) (Result, error) {
	if query == "" {
		return Result{}, fmt.Errorf("macro: search requires a query")
	}
	target := base + url.QueryEscape(query)
	if err := m.Launcher.Open(ctx, target); err != nil {
		return Result{}, err
	}
	return Result{Outputs: map[string]string{"target": target}}, nil
}

func (m Macro) writeNote(text string) (Result, error) {
	if text == "" {
		return Result{}, fmt.Errorf("macro: write_note requires text")
	}
	dir := worldmodel.ResolveLocation(string(worldmodel.LocationDesktop))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("macro: write_note: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("note_%s.txt", time.Now().Format("150405")))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return Result{}, fmt.Errorf("macro: write_note: %w", err)
	}
	return Result{
		Outputs:      map[string]string{"path": path},
		RollbackType: domain.RollbackTypeDelete,
		RollbackData: map[string]string{"path": path},
	}, nil
}
