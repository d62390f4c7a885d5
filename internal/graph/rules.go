package graph

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deskagent/agent/internal/domain"
)

// RuleViolationError is raised by Validate when a graph breaks one of
// the three structural rules (§4.8); it prevents the graph from ever
// reaching the runner.
type RuleViolationError struct {
	Rule    string
	Message string
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("graph rule %s violated: %s", e.Rule, e.Message)
}

// Validate enforces, in order, reactive-last, write-requires-create
// and file-requires-folder. Callers normally run Repair first so that
// the fixable cases never reach here.
func Validate(g *domain.ExecutionGraph) error {
	if len(g.Nodes) == 0 {
		return nil
	}
	order, err := topoOrder(g)
	if err != nil {
		return err
	}
	if err := ruleReactiveLast(g, order); err != nil {
		return err
	}
	if err := ruleWriteRequiresCreate(g); err != nil {
		return err
	}
	if err := ruleFileRequiresFolder(g); err != nil {
		return err
	}
	return nil
}

// topoOrder returns a dependency-respecting node ID order via Kahn's
// algorithm, erroring if the graph contains a cycle.
func topoOrder(g *domain.ExecutionGraph) ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, ok := indegree[n.ID]; !ok {
			indegree[n.ID] = 0
		}
		for _, dep := range n.DependsOn {
			indegree[n.ID]++
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	var queue []string
	for _, n := range g.Nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, &RuleViolationError{Rule: "acyclic", Message: "graph contains a dependency cycle"}
	}
	return order, nil
}

// ruleReactiveLast rejects any ordering where an IMPERATIVE node
// follows a REACTIVE one (§4.8 rule 1).
func ruleReactiveLast(g *domain.ExecutionGraph, order []string) error {
	seenReactive := false
	for _, id := range order {
		node := g.NodeByID(id)
		if node == nil {
			continue
		}
		if node.Class == domain.NodeClassReactive {
			seenReactive = true
			continue
		}
		if seenReactive && node.Class == domain.NodeClassImperative {
			return &RuleViolationError{
				Rule:    "reactive_last",
				Message: fmt.Sprintf("imperative node %s scheduled after a reactive node", node.ID),
			}
		}
	}
	return nil
}

// ruleWriteRequiresCreate requires a write_file node to have a
// create_file among its transitive dependencies for the same target
// path, or for that target to already exist on disk (§4.8 rule 2).
func ruleWriteRequiresCreate(g *domain.ExecutionGraph) error {
	for _, node := range g.Nodes {
		if node.Intent != domain.IntentWriteFile {
			continue
		}
		target := resolvedPath(node)
		if target != "" {
			if _, err := os.Stat(target); err == nil {
				continue
			}
		}
		if !hasTransitiveCreate(g, node, domain.IntentCreateFile, sameTarget(node)) {
			return &RuleViolationError{
				Rule:    "write_requires_create",
				Message: fmt.Sprintf("node %s writes %q with no preceding create_file for it", node.ID, target),
			}
		}
	}
	return nil
}

// ruleFileRequiresFolder requires a create_file node whose parent
// folder does not already exist on disk to have a create_folder for
// that parent among its transitive dependencies (§4.8 rule 3).
func ruleFileRequiresFolder(g *domain.ExecutionGraph) error {
	for _, node := range g.Nodes {
		if node.Intent != domain.IntentCreateFile {
			continue
		}
		parent := parentOf(node)
		if parent == "" {
			continue
		}
		if _, err := os.Stat(parent); err == nil {
			continue
		}
		if !hasTransitiveCreate(g, node, domain.IntentCreateFolder, sameParent(parent)) {
			return &RuleViolationError{
				Rule:    "file_requires_folder",
				Message: fmt.Sprintf("node %s creates a file under missing folder %q with no preceding create_folder", node.ID, parent),
			}
		}
	}
	return nil
}

// hasTransitiveCreate walks node's DependsOn graph breadth-first
// looking for a predecessor of the given intent satisfying match.
func hasTransitiveCreate(g *domain.ExecutionGraph, node *domain.ExecutionNode, intent domain.Intent, match func(*domain.ExecutionNode) bool) bool {
	visited := make(map[string]bool)
	queue := append([]string{}, node.DependsOn...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		dep := g.NodeByID(id)
		if dep == nil {
			continue
		}
		if dep.Intent == intent && match(dep) {
			return true
		}
		queue = append(queue, dep.DependsOn...)
	}
	return false
}

func sameTarget(node *domain.ExecutionNode) func(*domain.ExecutionNode) bool {
	target := resolvedPath(node)
	return func(other *domain.ExecutionNode) bool {
		return resolvedPath(other) == target
	}
}

func sameParent(parent string) func(*domain.ExecutionNode) bool {
	return func(other *domain.ExecutionNode) bool {
		return resolvedPath(other) == parent
	}
}

// resolvedPath joins a node's location and target the same way the
// filesystem actions do, so comparisons are apples-to-apples even when
// one node spelled its target absolutely and another relatively.
func resolvedPath(node *domain.ExecutionNode) string {
	target := node.Params["target"]
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(node.Params["location"], target)
}

func parentOf(node *domain.ExecutionNode) string {
	target := resolvedPath(node)
	if target == "" {
		return ""
	}
	dir := filepath.Dir(target)
	if dir == "." || dir == target {
		return ""
	}
	return dir
}
