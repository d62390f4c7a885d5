package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
)

func TestBuildProducesStraightChain(t *testing.T) {
	plan := domain.ExecutionPlan{
		CommandID: "CMD-1",
		Steps: []domain.PlanStep{
			{Index: 0, Intent: domain.IntentCreateFolder, Target: "photos", Location: "/home/u/Desktop"},
			{Index: 1, Intent: domain.IntentCreateFile, Target: "notes.txt", Location: "/home/u/Desktop/photos"},
			{Index: 2, Intent: domain.IntentWatch, Target: "", Location: "/home/u/Desktop/photos"},
		},
	}

	g := Build(plan)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "CMD-1", g.CommandID)
	assert.Empty(t, g.Nodes[0].DependsOn)
	assert.Equal(t, []string{"node-0"}, g.Nodes[1].DependsOn)
	assert.Equal(t, []string{"node-1"}, g.Nodes[2].DependsOn)
	assert.Equal(t, domain.NodeClassImperative, g.Nodes[0].Class)
	assert.Equal(t, domain.NodeClassReactive, g.Nodes[2].Class)
}

func TestBuildHonoursParallelWithMetadata(t *testing.T) {
	plan := domain.ExecutionPlan{
		CommandID: "CMD-1",
		Steps: []domain.PlanStep{
			{Index: 0, Intent: domain.IntentCreateFolder, Target: "a", Location: "/tmp"},
			{Index: 1, Intent: domain.IntentCreateFolder, Target: "b", Location: "/tmp", Params: map[string]string{"parallel_with": "node-0"}},
		},
	}

	g := Build(plan)
	assert.Empty(t, g.Nodes[1].DependsOn)
}
