package learning

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/platform/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(context.Background(), filepath.Join(dir, "learning.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestLearnThenRecall(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	pattern, err := store.Learn(ctx, "pat-1", domain.IntentCreateFile, []string{"loc"}, map[string]string{"loc": "desktop"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0.6, pattern.Confidence)
	assert.Equal(t, 1, pattern.UsageCount)

	recalled, ok, err := store.Recall(ctx, domain.IntentCreateFile, []string{"loc"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pat-1", recalled.PatternID)
	assert.Equal(t, "desktop", recalled.Resolution["loc"])
}

func TestRecallMissesOnUnknownKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, ok, err := store.Recall(ctx, domain.IntentCreateFile, []string{"loc"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLearnIsKeyedBySortedMissingFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Learn(ctx, "pat-2", domain.IntentCreateFile, []string{"target", "loc"}, map[string]string{"loc": "desktop", "target": "a.txt"}, "")
	require.NoError(t, err)

	recalled, ok, err := store.Recall(ctx, domain.IntentCreateFile, []string{"loc", "target"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pat-2", recalled.PatternID)
}

func TestConfirmUsageIncrementsConfidenceAndCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Learn(ctx, "pat-3", domain.IntentWatch, []string{"loc"}, map[string]string{"loc": "downloads"}, "")
	require.NoError(t, err)

	require.NoError(t, store.ConfirmUsage(ctx, "pat-3"))

	recalled, ok, err := store.Recall(ctx, domain.IntentWatch, []string{"loc"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.65, recalled.Confidence, 0.0001)
	assert.Equal(t, 2, recalled.UsageCount)
}

func TestConfirmUsageUnknownPatternErrors(t *testing.T) {
	store := newTestStore(t)
	err := store.ConfirmUsage(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestApplyToCommandFillsBlankFieldsAboveThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Learn(ctx, "pat-4", domain.IntentCreateFile, []string{"loc"}, map[string]string{"loc": "desktop"}, "")
	require.NoError(t, err)

	cmd := domain.Command{Intent: domain.IntentCreateFile, Target: "report.txt"}
	completed, result, err := store.ApplyToCommand(ctx, cmd)
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, "pat-4", result.PatternID)
	assert.Equal(t, "desktop", completed.Loc)
	assert.False(t, completed.IsFieldExplicit("loc"))
	assert.Equal(t, "pat-4", completed.LearningPatternID)
}

func TestApplyToCommandNoOpWhenNothingMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	cmd := domain.Command{Intent: domain.IntentCreateFile, Target: "report.txt", Loc: "desktop", Destination: "n/a"}
	completed, result, err := store.ApplyToCommand(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, cmd, completed)
}

func TestStatsSummarisesPatterns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Learn(ctx, "pat-5", domain.IntentCreateFile, []string{"loc"}, map[string]string{"loc": "desktop"}, "")
	require.NoError(t, err)
	_, err = store.Learn(ctx, "pat-6", domain.IntentWatch, []string{"loc"}, map[string]string{"loc": "downloads"}, "")
	require.NoError(t, err)
	require.NoError(t, store.ConfirmUsage(ctx, "pat-6"))
	require.NoError(t, store.ConfirmUsage(ctx, "pat-6"))
	require.NoError(t, store.ConfirmUsage(ctx, "pat-6"))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPatterns)
	assert.Equal(t, 1, stats.HighConfidence)
	assert.ElementsMatch(t, []string{string(domain.IntentCreateFile), string(domain.IntentWatch)}, stats.Intents)
}

func TestLearnGraphFixInsertsThenIncrementsUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	fix, err := store.LearnGraphFix(ctx, "file_needs_folder", "write_text", "inject_create_file")
	require.NoError(t, err)
	assert.Equal(t, 1, fix.UsageCount)

	fix, err = store.LearnGraphFix(ctx, "file_needs_folder", "write_text", "inject_create_file")
	require.NoError(t, err)
	assert.Equal(t, 2, fix.UsageCount)

	fixes, err := store.GraphFixes(ctx, "file_needs_folder")
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, 2, fixes[0].UsageCount)
}
