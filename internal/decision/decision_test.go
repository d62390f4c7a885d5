package decision

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/learning"
	"github.com/deskagent/agent/internal/platform/database"
	"github.com/deskagent/agent/internal/worldmodel"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(context.Background(), filepath.Join(dir, "learning.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(worldmodel.New(), learning.New(db), "en")
}

func TestDecideExplicitCommandExecutesSilently(t *testing.T) {
	engine := newTestEngine(t)
	outcome, err := engine.Decide(context.Background(), domain.Command{
		Intent: domain.IntentCreateFile, Target: "notes.txt", Loc: "desktop",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionExecute, outcome.Action)
	assert.Empty(t, outcome.Notification)
}

func TestDecideBareWatchExecutesWithNotification(t *testing.T) {
	engine := newTestEngine(t)
	outcome, err := engine.Decide(context.Background(), domain.Command{Intent: domain.IntentWatch})
	require.NoError(t, err)
	assert.Equal(t, ActionExecute, outcome.Action)
	assert.NotEmpty(t, outcome.Notification)
}

func TestDecideUnknownIntentAsks(t *testing.T) {
	engine := newTestEngine(t)
	outcome, err := engine.Decide(context.Background(), domain.Command{Intent: domain.IntentUnknown})
	require.NoError(t, err)
	assert.Equal(t, ActionAsk, outcome.Action)
	require.NotNil(t, outcome.Clarification)
	assert.NotEmpty(t, outcome.Clarification.Question)
}

func TestDecideAppliesLearnedPatternBeforeWorldModel(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := database.Open(ctx, filepath.Join(dir, "learning.db"), true)
	require.NoError(t, err)
	defer db.Close()

	store := learning.New(db)
	_, err = store.Learn(ctx, "pat-1", domain.IntentCreateFile, []string{"loc"}, map[string]string{"loc": "documents"}, "")
	require.NoError(t, err)

	engine := New(worldmodel.New(), store, "en")
	outcome, err := engine.Decide(ctx, domain.Command{Intent: domain.IntentCreateFile, Target: "notes.txt"})
	require.NoError(t, err)

	assert.Equal(t, worldmodel.ResolveLocation("documents"), outcome.Command.Loc)
}

func TestDecideWatchUpdatesWatchTargetContext(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Decide(ctx, domain.Command{Intent: domain.IntentWatch, Loc: "downloads"})
	require.NoError(t, err)

	outcome, err := engine.Decide(ctx, domain.Command{Intent: domain.IntentCreateFolder})
	require.NoError(t, err)
	assert.Equal(t, worldmodel.ResolveLocation("downloads"), outcome.Command.Loc)
}

func TestResolveChainAveragesConfidence(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	chain := []domain.Command{
		{Intent: domain.IntentCreateFile, Target: "a.txt", Loc: "desktop"},
		{Intent: domain.IntentUnknown},
	}
	outcome, err := engine.ResolveChain(ctx, chain)
	require.NoError(t, err)
	assert.True(t, outcome.Score.Value < 1.0)
}

func TestResolveChainRejectsEmpty(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.ResolveChain(context.Background(), nil)
	assert.Error(t, err)
}
