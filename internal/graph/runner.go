package graph

import (
	"context"
	"time"

	"github.com/deskagent/agent/internal/domain"
)

// RollbackRegistrar is the Rollback Engine's (C10) full surface, as
// seen from the runner and the actions it drives: Trasher lets an
// action preserve what it's about to remove or overwrite as part of
// its own forward effect, and Register files the resulting undo record
// before the runner moves on to the next node, so a later failure
// still leaves earlier steps reversible (§4.9). Defined here rather
// than depended on, so internal/rollback can depend on internal/graph
// instead of the other way around.
type RollbackRegistrar interface {
	Trasher
	Register(ctx context.Context, cmdID, nodeID string, intent domain.Intent, rollbackType domain.RollbackType, data map[string]string) error
}

// ProgressFunc receives a status update for a single node as the
// runner executes the graph.
type ProgressFunc func(node *domain.ExecutionNode)

// Runner walks an ExecutionGraph to completion, one ready node at a
// time, registering rollback artifacts as it goes and publishing
// progress to any subscribers (§4.9).
type Runner struct {
	rollback    RollbackRegistrar
	subscribers []ProgressFunc
}

// New returns a Runner that registers effectful node undo records with
// rollback. rollback may be nil, in which case nodes still execute but
// nothing is made reversible — callers outside of tests should always
// supply one.
func New(rollback RollbackRegistrar) *Runner {
	return &Runner{rollback: rollback}
}

// Subscribe registers fn to be called after every node status change.
func (r *Runner) Subscribe(fn ProgressFunc) {
	r.subscribers = append(r.subscribers, fn)
}

func (r *Runner) publish(node *domain.ExecutionNode) {
	for _, fn := range r.subscribers {
		fn(node)
	}
}

// Run walks g's nodes in dependency order, executing each via
// actions[node.Intent]. stop_on_failure is the only supported mode
// (§4.9): the first node failure marks every still-pending node
// SKIPPED and returns success=false.
func (r *Runner) Run(ctx context.Context, g *domain.ExecutionGraph, actions map[domain.Intent]Action) domain.GraphResult {
	shared := make(map[string]string)
	completed := make(map[string]bool, len(g.Nodes))

	for {
		node := nextReady(g, completed)
		if node == nil {
			break
		}

		action := actions[node.Intent]
		if action == nil {
			action = ForIntent(node.Intent)
		}
		if action == nil {
			// CONTROL/TERMINAL/REACTIVE nodes the composition root
			// didn't wire an action for complete as a no-op; the
			// Watcher Subsystem and future control-flow nodes are
			// expected to be supplied via actions.
			node.Status = domain.NodeStatusDone
			completed[node.ID] = true
			r.publish(node)
			continue
		}

		node.Status = domain.NodeStatusRunning
		r.publish(node)

		start := time.Now()
		var trash Trasher
		if r.rollback != nil {
			trash = r.rollback
		}
		result, err := action.Execute(ctx, g.CommandID, node, shared, trash)
		node.DurationMS = time.Since(start).Milliseconds()

		if err != nil {
			node.Status = domain.NodeStatusFailed
			node.Error = err.Error()
			r.publish(node)
			r.skipRemaining(g, completed, node.ID)
			return domain.GraphResult{Success: false, FailedNode: node.ID, Error: err.Error()}
		}

		for k, v := range result.Outputs {
			shared[node.ID+"."+k] = v
		}
		if result.RollbackType != "" && r.rollback != nil {
			if rerr := r.rollback.Register(ctx, g.CommandID, node.ID, node.Intent, result.RollbackType, result.RollbackData); rerr != nil {
				node.Status = domain.NodeStatusFailed
				node.Error = rerr.Error()
				r.publish(node)
				r.skipRemaining(g, completed, node.ID)
				return domain.GraphResult{Success: false, FailedNode: node.ID, Error: rerr.Error()}
			}
		}

		node.Status = domain.NodeStatusDone
		completed[node.ID] = true
		r.publish(node)
	}

	return domain.GraphResult{Success: true}
}

// nextReady returns the first pending node whose dependencies are all
// in completed, preserving the graph's original node order.
func nextReady(g *domain.ExecutionGraph, completed map[string]bool) *domain.ExecutionNode {
	for _, node := range g.Nodes {
		if node.Status.IsTerminal() {
			continue
		}
		if dependsSatisfied(node, completed) {
			return node
		}
	}
	return nil
}

func dependsSatisfied(node *domain.ExecutionNode, completed map[string]bool) bool {
	for _, dep := range node.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// skipRemaining marks every node not yet completed and not the failed
// node itself as SKIPPED.
func (r *Runner) skipRemaining(g *domain.ExecutionGraph, completed map[string]bool, failedID string) {
	for _, node := range g.Nodes {
		if node.ID == failedID || completed[node.ID] || node.Status.IsTerminal() {
			continue
		}
		node.Status = domain.NodeStatusSkipped
		r.publish(node)
	}
}
