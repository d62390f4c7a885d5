// Package graph implements the Graph Builder, Rule Engine, Auto-Repair
// and Runner (C8, C9, §4.8-4.9): it turns a frozen ExecutionPlan into a
// dependency graph of nodes, repairs the defects it knows how to fix,
// enforces the structural rules on what's left, then walks the graph
// to completion one ready node at a time.
package graph

import (
	"fmt"

	"github.com/deskagent/agent/internal/domain"
)

// Build turns plan's steps into a straight-chain ExecutionGraph: node i
// depends on node i-1 unless the step itself carries parallelism
// metadata under the "parallel_with" param, in which case the node gets
// no dependency on its predecessor at all, whatever node the param
// names (§4.8 "unless the planner supplied parallelism metadata").
func Build(plan domain.ExecutionPlan) *domain.ExecutionGraph {
	g := &domain.ExecutionGraph{CommandID: plan.CommandID}

	var previousID string
	for _, step := range plan.Steps {
		id := nodeID(step.Index)
		node := &domain.ExecutionNode{
			ID:     id,
			Intent: step.Intent,
			Class:  domain.ClassifyIntent(step.Intent),
			Params: nodeParams(step),
			Status: domain.NodeStatusPending,
		}
		if previousID != "" && step.Params["parallel_with"] == "" {
			node.DependsOn = []string{previousID}
		}
		g.Nodes = append(g.Nodes, node)
		previousID = id
	}
	return g
}

func nodeID(index int) string {
	return fmt.Sprintf("node-%d", index)
}

// nodeParams carries the step's own params forward plus the target and
// location the rule engine and actions both need to see under
// well-known keys.
func nodeParams(step domain.PlanStep) map[string]string {
	params := make(map[string]string, len(step.Params)+2)
	for k, v := range step.Params {
		params[k] = v
	}
	params["target"] = step.Target
	params["location"] = step.Location
	return params
}
