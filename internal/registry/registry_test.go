package registry

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
)

var idPattern = regexp.MustCompile(`^CMD-[0-9]{8}-[0-9A-F]{4}$`)

func TestGenerateIDFormat(t *testing.T) {
	id := GenerateID()
	assert.Regexp(t, idPattern, id)
}

func TestRegisterAndGet(t *testing.T) {
	r := New(1000)
	id := r.Register("open downloads", domain.IntentOpen)

	rec, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.CommandStatusPending, rec.Status)
	assert.Equal(t, domain.IntentOpen, rec.Intent)
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	r := New(1000)
	id := r.Register("x", domain.IntentUnknown)

	assert.False(t, r.UpdateStatus(id, domain.CommandStatusCompleted, "", ""))
	assert.True(t, r.UpdateStatus(id, domain.CommandStatusProcessing, "", ""))
	assert.True(t, r.UpdateStatus(id, domain.CommandStatusCompleted, "ok", ""))

	rec, _ := r.Get(id)
	assert.NotNil(t, rec.CompletedAt)
}

func TestEvictionDropsOldestBatch(t *testing.T) {
	r := New(10)
	var ids []string
	for i := 0; i < 15; i++ {
		ids = append(ids, r.Register("cmd", domain.IntentUnknown))
	}

	stats := r.Stats()
	assert.LessOrEqual(t, stats.Total, 10)
	// The very first id registered should have been evicted.
	_, ok := r.Get(ids[0])
	assert.False(t, ok)
}

func TestGetRecentOrdersNewestFirst(t *testing.T) {
	r := New(1000)
	first := r.Register("a", domain.IntentUnknown)
	second := r.Register("b", domain.IntentUnknown)

	recent := r.GetRecent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, second, recent[0].ID)
	assert.Equal(t, first, recent[1].ID)
}

func TestGetRollbackable(t *testing.T) {
	r := New(1000)
	id := r.Register("delete file", domain.IntentDelete)
	require.True(t, r.UpdateStatus(id, domain.CommandStatusProcessing, "", ""))
	require.True(t, r.UpdateStatus(id, domain.CommandStatusCompleted, "", ""))
	r.SetRollbackAvailable(id, true)

	rollbackable := r.GetRollbackable()
	require.Len(t, rollbackable, 1)
	assert.Equal(t, id, rollbackable[0].ID)
}

func TestStatsByStatus(t *testing.T) {
	r := New(1000)
	r.Register("a", domain.IntentUnknown)
	id := r.Register("b", domain.IntentUnknown)
	require.True(t, r.UpdateStatus(id, domain.CommandStatusProcessing, "", ""))

	stats := r.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.CommandStatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.CommandStatusProcessing])
}
