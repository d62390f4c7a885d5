package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/learning"
	"github.com/deskagent/agent/internal/platform/database"
)

func newTestStore(t *testing.T) *learning.Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := database.Open(ctx, filepath.Join(dir, "learning.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return learning.New(db)
}

func TestRepairReordersReactiveToEnd(t *testing.T) {
	dir := t.TempDir()
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentWatch, map[string]string{"target": "", "location": dir}),
		node("node-1", domain.IntentCreateFolder, map[string]string{"target": "x", "location": dir}, "node-0"),
	}}

	applied := Repair(context.Background(), g, nil)
	assert.Contains(t, applied, "reorder_reactive_to_end")
	assert.NoError(t, Validate(g))
}

func TestRepairInjectsMissingCreateFile(t *testing.T) {
	dir := t.TempDir()
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentWriteFile, map[string]string{"target": "notes.txt", "location": dir}),
	}}

	applied := Repair(context.Background(), g, nil)
	assert.Contains(t, applied, "inject_create_file")
	require.NoError(t, Validate(g))

	var sawCreate bool
	for _, n := range g.Nodes {
		if n.Intent == domain.IntentCreateFile {
			sawCreate = true
		}
	}
	assert.True(t, sawCreate)
}

func TestRepairInjectsMissingCreateFolder(t *testing.T) {
	dir := t.TempDir()
	missingParent := filepath.Join(dir, "sub")
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentCreateFile, map[string]string{"target": "notes.txt", "location": missingParent}),
	}}

	applied := Repair(context.Background(), g, nil)
	assert.Contains(t, applied, "inject_create_folder")
	assert.NoError(t, Validate(g))
}

func TestRepairLeavesAlreadyValidGraphUntouched(t *testing.T) {
	dir := t.TempDir()
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentCreateFolder, map[string]string{"target": "x", "location": dir}),
	}}
	applied := Repair(context.Background(), g, nil)
	assert.Empty(t, applied)
	assert.Len(t, g.Nodes, 1)
}

func TestRepairRecordsGraphFixPattern(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentWriteFile, map[string]string{"target": "notes.txt", "location": dir}),
	}}

	Repair(context.Background(), g, store)

	fixes, err := store.GraphFixes(context.Background(), "write_requires_create")
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, "inject_create_file", fixes[0].FixAction)
}
