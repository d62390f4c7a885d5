package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/worldmodel"
)

// defaultCleanDestination is where `clean` files land when the
// command didn't name one, matching the original agent's
// dest_name="Documents" default.
const defaultCleanDestination = "documents"

// cleanSubfolder is the subdirectory created under the resolved
// destination, mirroring the source's "Cleaned" folder so repeated
// cleans of the same source don't collide with unrelated Documents
// content.
const cleanSubfolder = "Cleaned"

// Clean moves filter-matching files out of a source folder into a
// destination's "Cleaned" subfolder (§9 Open Question 3): an empty
// filter matches every non-hidden file, a non-empty one is a
// case-insensitive substring match against the file name. One
// RollbackTypeRestoreMany record covers every file this node moves,
// since the rollback model is one record per node regardless of how
// many files that node's effect touched.
type Clean struct{}

func (Clean) Execute(_ context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	source := watchFolder(node)
	if source == "" {
		return Result{}, fmt.Errorf("clean: no source folder resolved")
	}
	entries, err := os.ReadDir(source)
	if err != nil {
		return Result{}, fmt.Errorf("clean %s: %w", source, err)
	}

	destBase := node.Params["destination"]
	if destBase == "" {
		destBase = defaultCleanDestination
	}
	dest := filepath.Join(worldmodel.ResolveLocation(destBase), cleanSubfolder)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Result{}, fmt.Errorf("clean: create destination %s: %w", dest, err)
	}

	filter := strings.ToLower(node.Params["filter_key"])
	var moved []domain.MovedFile
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		origin := filepath.Join(source, entry.Name())
		if filter == "" && isHiddenAttribute(origin) {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(entry.Name()), filter) {
			continue
		}

		target := filepath.Join(dest, entry.Name())
		if err := os.Rename(origin, target); err != nil {
			return Result{}, fmt.Errorf("clean: move %s: %w", origin, err)
		}
		moved = append(moved, domain.MovedFile{Origin: origin, Destination: target})
	}

	outputs := map[string]string{"count": fmt.Sprintf("%d", len(moved)), "destination": dest}
	if len(moved) == 0 {
		return Result{Outputs: outputs}, nil
	}

	encoded, err := json.Marshal(moved)
	if err != nil {
		return Result{}, fmt.Errorf("clean: encode moved files: %w", err)
	}
	return Result{
		Outputs:      outputs,
		RollbackType: domain.RollbackTypeRestoreMany,
		RollbackData: map[string]string{"moves": string(encoded)},
	}, nil
}
