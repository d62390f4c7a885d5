package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
)

func node(id string, intent domain.Intent, params map[string]string, deps ...string) *domain.ExecutionNode {
	return &domain.ExecutionNode{
		ID:        id,
		Intent:    intent,
		Class:     domain.ClassifyIntent(intent),
		Params:    params,
		DependsOn: deps,
		Status:    domain.NodeStatusPending,
	}
}

func TestValidateAcceptsEmptyGraph(t *testing.T) {
	assert.NoError(t, Validate(&domain.ExecutionGraph{}))
}

func TestValidateRejectsCycle(t *testing.T) {
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentCreateFolder, nil, "node-1"),
		node("node-1", domain.IntentCreateFile, nil, "node-0"),
	}}
	err := Validate(g)
	require.Error(t, err)
}

func TestValidateRejectsImperativeAfterReactive(t *testing.T) {
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentWatch, map[string]string{"target": "", "location": "/tmp"}),
		node("node-1", domain.IntentCreateFile, map[string]string{"target": "f", "location": "/tmp"}, "node-0"),
	}}
	err := Validate(g)
	require.Error(t, err)
	var ruleErr *RuleViolationError
	assert.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "reactive_last", ruleErr.Rule)
}

func TestValidateAllowsReactiveAfterImperative(t *testing.T) {
	dir := t.TempDir()
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentCreateFolder, map[string]string{"target": "x", "location": dir}),
		node("node-1", domain.IntentWatch, map[string]string{"target": "", "location": dir}, "node-0"),
	}}
	assert.NoError(t, Validate(g))
}

func TestValidateRejectsWriteWithoutCreate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "missing.txt")
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentWriteFile, map[string]string{"target": target, "location": ""}),
	}}
	err := Validate(g)
	require.Error(t, err)
	var ruleErr *RuleViolationError
	assert.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "write_requires_create", ruleErr.Rule)
}

func TestValidateAcceptsWriteAfterMatchingCreate(t *testing.T) {
	dir := t.TempDir()
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentCreateFile, map[string]string{"target": "notes.txt", "location": dir}),
		node("node-1", domain.IntentWriteFile, map[string]string{"target": "notes.txt", "location": dir}, "node-0"),
	}}
	assert.NoError(t, Validate(g))
}

func TestValidateRejectsCreateFileUnderMissingFolder(t *testing.T) {
	dir := t.TempDir()
	missingParent := filepath.Join(dir, "nope")
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentCreateFile, map[string]string{"target": "notes.txt", "location": missingParent}),
	}}
	err := Validate(g)
	require.Error(t, err)
	var ruleErr *RuleViolationError
	assert.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "file_requires_folder", ruleErr.Rule)
}

func TestValidateAcceptsCreateFileAfterMatchingCreateFolder(t *testing.T) {
	dir := t.TempDir()
	parent := filepath.Join(dir, "sub")
	g := &domain.ExecutionGraph{Nodes: []*domain.ExecutionNode{
		node("node-0", domain.IntentCreateFolder, map[string]string{"target": "sub", "location": dir}),
		node("node-1", domain.IntentCreateFile, map[string]string{"target": "notes.txt", "location": parent}, "node-0"),
	}}
	assert.NoError(t, Validate(g))
}
