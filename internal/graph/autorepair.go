package graph

import (
	"context"
	"os"
	"path/filepath"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/learning"
)

// Repair patches the three defects the builder can leave behind,
// before Validate ever runs (§4.8 "Auto-repair runs before final rule
// validation"). Each applied fix is recorded against store as a
// graph-fix pattern for future prioritisation; store may be nil in
// tests that don't care about that bookkeeping.
func Repair(ctx context.Context, g *domain.ExecutionGraph, store *learning.Store) []string {
	var applied []string

	if needsReorderReactive(g) {
		reorderReactive(g)
		applied = append(applied, "reorder_reactive_to_end")
		learnFix(ctx, store, "reactive_last", "watch", "reorder_reactive_to_end")
	}

	if id := findMissingFolderInjection(g); id != "" {
		injectCreateFolder(g, id)
		applied = append(applied, "inject_create_folder")
		learnFix(ctx, store, "file_requires_folder", "create_file", "inject_create_folder")
	}

	if id := findMissingFileInjection(g); id != "" {
		injectCreateFile(g, id)
		applied = append(applied, "inject_create_file")
		learnFix(ctx, store, "write_requires_create", "write_file", "inject_create_file")
	}

	return applied
}

func learnFix(ctx context.Context, store *learning.Store, rule, trigger, fix string) {
	if store == nil {
		return
	}
	// Best-effort bookkeeping; a failed write here must never block
	// execution of an already-repaired graph.
	_, _ = store.LearnGraphFix(ctx, rule, trigger, fix)
}

// needsReorderReactive detects the condition ruleReactiveLast would
// reject: a REACTIVE node somewhere other than last in dependency
// order.
func needsReorderReactive(g *domain.ExecutionGraph) bool {
	order, err := topoOrder(g)
	if err != nil {
		return false
	}
	return ruleReactiveLast(g, order) != nil
}

// reorderReactive rewrites every REACTIVE node's dependencies to be
// exactly the full set of IMPERATIVE nodes, guaranteeing it can only
// run once all of them have (§4.8 "Reorder reactive"). A non-reactive
// node that depended on a reactive node takes over that node's former
// non-reactive dependencies instead, so the rewrite leaves no cycle.
func reorderReactive(g *domain.ExecutionGraph) {
	var imperativeIDs []string
	reactive := make(map[string][]string)
	for _, n := range g.Nodes {
		if n.Class == domain.NodeClassImperative {
			imperativeIDs = append(imperativeIDs, n.ID)
		}
		if n.Class == domain.NodeClassReactive {
			reactive[n.ID] = n.DependsOn
		}
	}
	if len(imperativeIDs) == 0 {
		return
	}
	for _, n := range g.Nodes {
		if n.Class == domain.NodeClassReactive {
			n.DependsOn = append([]string{}, imperativeIDs...)
			continue
		}
		var deps []string
		for _, dep := range n.DependsOn {
			for _, d := range append([]string{dep}, reactive[dep]...) {
				if _, isReactive := reactive[d]; !isReactive {
					deps = append(deps, d)
				}
			}
		}
		n.DependsOn = deps
	}
}

// findMissingFileInjection returns the ID of the first write_file node
// with no create_file for its target, or "" if none need fixing.
func findMissingFileInjection(g *domain.ExecutionGraph) string {
	for _, n := range g.Nodes {
		if n.Intent != domain.IntentWriteFile {
			continue
		}
		target := resolvedPath(n)
		if target == "" {
			continue
		}
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if !hasTransitiveCreate(g, n, domain.IntentCreateFile, sameTarget(n)) {
			return n.ID
		}
	}
	return ""
}

// injectCreateFile inserts a new create_file node upstream of nodeID,
// inheriting its dependencies, then rewires nodeID to depend on it
// (§4.8 "Inject create_file").
func injectCreateFile(g *domain.ExecutionGraph, nodeID string) {
	writer := g.NodeByID(nodeID)
	if writer == nil {
		return
	}
	target := writer.Params["target"]
	location := writer.Params["location"]

	newNode := &domain.ExecutionNode{
		ID:     nextNodeID(g),
		Intent: domain.IntentCreateFile,
		Class:  domain.NodeClassImperative,
		Params: map[string]string{"target": target, "location": location},
		DependsOn: append([]string{}, writer.DependsOn...),
		Status:    domain.NodeStatusPending,
	}
	g.Nodes = insertBefore(g.Nodes, writer.ID, newNode)
	writer.DependsOn = []string{newNode.ID}
}

// findMissingFolderInjection returns the ID of the first create_file
// node whose parent folder is absent from disk and has no
// create_folder among its dependencies, or "" if none need fixing.
func findMissingFolderInjection(g *domain.ExecutionGraph) string {
	for _, n := range g.Nodes {
		if n.Intent != domain.IntentCreateFile {
			continue
		}
		parent := parentOf(n)
		if parent == "" {
			continue
		}
		if _, err := os.Stat(parent); err == nil {
			continue
		}
		if !hasTransitiveCreate(g, n, domain.IntentCreateFolder, sameParent(parent)) {
			return n.ID
		}
	}
	return ""
}

// injectCreateFolder inserts a new create_folder node upstream of
// nodeID for its parent directory (§4.8 "Inject create_folder",
// generalising original_source/core/auto_repair.py's unimplemented
// stub).
func injectCreateFolder(g *domain.ExecutionGraph, nodeID string) {
	creator := g.NodeByID(nodeID)
	if creator == nil {
		return
	}
	parent := parentOf(creator)

	newNode := &domain.ExecutionNode{
		ID:     nextNodeID(g),
		Intent: domain.IntentCreateFolder,
		Class:  domain.NodeClassImperative,
		Params: map[string]string{"target": filepath.Base(parent), "location": filepath.Dir(parent)},
		DependsOn: append([]string{}, creator.DependsOn...),
		Status:    domain.NodeStatusPending,
	}
	g.Nodes = insertBefore(g.Nodes, creator.ID, newNode)
	creator.DependsOn = append(creator.DependsOn, newNode.ID)
}

func nextNodeID(g *domain.ExecutionGraph) string {
	return nodeID(len(g.Nodes))
}

func insertBefore(nodes []*domain.ExecutionNode, beforeID string, newNode *domain.ExecutionNode) []*domain.ExecutionNode {
	for i, n := range nodes {
		if n.ID == beforeID {
			out := make([]*domain.ExecutionNode, 0, len(nodes)+1)
			out = append(out, nodes[:i]...)
			out = append(out, newNode)
			out = append(out, nodes[i:]...)
			return out
		}
	}
	return append(nodes, newNode)
}
