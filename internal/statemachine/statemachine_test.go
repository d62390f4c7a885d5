package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
)

func TestInitRegistersCommandInInitState(t *testing.T) {
	m := New(nil)
	status := m.Init("CMD-1")

	assert.Equal(t, domain.StateInit, status.State)
	assert.True(t, status.Controls.CanCancel)
	assert.Len(t, m.Timeline("CMD-1"), 1)
}

func TestTransitionFollowsForwardOrder(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")

	require.NoError(t, m.Transition("CMD-1", domain.StateParsing, "parsing", "", nil))
	require.NoError(t, m.Transition("CMD-1", domain.StatePolicyCheck, "", "", nil))

	status, ok := m.Get("CMD-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatePolicyCheck, status.State)
	assert.Equal(t, "POLICY_CHECK", status.LastAction)
}

func TestTransitionRejectsIllegalJump(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")

	err := m.Transition("CMD-1", domain.StatePolicyCheck, "", "", nil)
	assert.Error(t, err)

	status, _ := m.Get("CMD-1")
	assert.Equal(t, domain.StateInit, status.State)
}

func TestTransitionUnknownCommandErrors(t *testing.T) {
	m := New(nil)
	assert.Error(t, m.Transition("CMD-GHOST", domain.StateParsing, "", "", nil))
}

func TestNodeRunningEnablesPause(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	require.NoError(t, m.Transition("CMD-1", domain.StateParsing, "", "", nil))
	require.NoError(t, m.Transition("CMD-1", domain.StatePolicyCheck, "", "", nil))
	require.NoError(t, m.Transition("CMD-1", domain.StateGraphBuilt, "", "", nil))
	require.NoError(t, m.Transition("CMD-1", domain.StateNodeRunning, "", "node-0", nil))

	status, _ := m.Get("CMD-1")
	assert.True(t, status.Controls.CanPause)
	assert.Equal(t, "node-0", status.CurrentNode)
}

func TestCompletedSetsProgressAndCanRollback(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	for _, s := range []domain.MachineState{
		domain.StateParsing, domain.StatePolicyCheck, domain.StateGraphBuilt,
		domain.StateNodeRunning, domain.StateNodeDone,
	} {
		require.NoError(t, m.Transition("CMD-1", s, "", "", nil))
	}
	require.NoError(t, m.Transition("CMD-1", domain.StateCompleted, "", "", nil))

	status, _ := m.Get("CMD-1")
	assert.Equal(t, 100, status.ProgressPercent)
	assert.True(t, status.Controls.CanRollback)
	assert.False(t, status.Controls.CanPause)
	assert.False(t, status.Controls.CanCancel)
	assert.False(t, status.CompletedAt.IsZero())
}

func TestUpdateProgressComputesPercent(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	m.UpdateProgress("CMD-1", 2, 4, "node-2")

	status, _ := m.Get("CMD-1")
	assert.Equal(t, 50, status.ProgressPercent)
	assert.Equal(t, "node-2", status.CurrentNode)
}

func TestSetErrorTransitionsToFailed(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	require.NoError(t, m.SetError("CMD-1", "disk full"))

	status, _ := m.Get("CMD-1")
	assert.Equal(t, domain.StateFailed, status.State)
	assert.Equal(t, "disk full", status.Error)
}

func TestPauseAndResumeRoundTrip(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	require.NoError(t, m.Transition("CMD-1", domain.StateParsing, "", "", nil))
	require.NoError(t, m.Transition("CMD-1", domain.StatePolicyCheck, "", "", nil))
	require.NoError(t, m.Transition("CMD-1", domain.StateGraphBuilt, "", "", nil))
	require.NoError(t, m.Transition("CMD-1", domain.StateNodeRunning, "", "", nil))

	assert.True(t, m.Pause("CMD-1"))
	status, _ := m.Get("CMD-1")
	assert.Equal(t, domain.StatePaused, status.State)

	assert.True(t, m.Resume("CMD-1"))
	status, _ = m.Get("CMD-1")
	assert.Equal(t, domain.StateNodeRunning, status.State)
}

func TestPauseFailsWhenNotRunning(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	assert.False(t, m.Pause("CMD-1"))
}

func TestCancelRespectsControls(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	assert.True(t, m.Cancel("CMD-1"))

	status, _ := m.Get("CMD-1")
	assert.Equal(t, domain.StateCancelled, status.State)
	assert.False(t, m.Cancel("CMD-1"))
}

func TestRequestRollbackOnlyAfterCompleted(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	assert.False(t, m.RequestRollback("CMD-1"))

	for _, s := range []domain.MachineState{
		domain.StateParsing, domain.StatePolicyCheck, domain.StateGraphBuilt,
		domain.StateNodeRunning, domain.StateNodeDone, domain.StateCompleted,
	} {
		require.NoError(t, m.Transition("CMD-1", s, "", "", nil))
	}

	assert.True(t, m.RequestRollback("CMD-1"))
	require.NoError(t, m.MarkRolledBack("CMD-1"))

	status, _ := m.Get("CMD-1")
	assert.Equal(t, domain.StateRolledBack, status.State)
}

func TestActiveExcludesTerminalStates(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	m.Init("CMD-2")
	require.NoError(t, m.Transition("CMD-2", domain.StateParsing, "", "", nil))
	require.NoError(t, m.Transition("CMD-2", domain.StatePolicyCheck, "", "", nil))
	require.NoError(t, m.Transition("CMD-2", domain.StatePolicyBlocked, "", "", nil))
	assert.True(t, m.Cancel("CMD-2"))

	active := m.Active()
	assert.Len(t, active, 1)
	assert.Equal(t, "CMD-1", active[0].CommandID)
}

func TestSubscribeReceivesUpdatesUntilUnsubscribed(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")

	var seen []domain.MachineState
	token := m.Subscribe("CMD-1", func(s domain.ExecutionStatus) { seen = append(seen, s.State) })

	require.NoError(t, m.Transition("CMD-1", domain.StateParsing, "", "", nil))
	m.Unsubscribe("CMD-1", token)
	require.NoError(t, m.Transition("CMD-1", domain.StatePolicyCheck, "", "", nil))

	assert.Equal(t, []domain.MachineState{domain.StateParsing}, seen)
}

func TestSubscribeAllReceivesEveryCommand(t *testing.T) {
	m := New(nil)
	var seen []string
	m.SubscribeAll(func(s domain.ExecutionStatus) { seen = append(seen, s.CommandID) })

	m.Init("CMD-1")
	m.Init("CMD-2")

	assert.Equal(t, []string{"CMD-1", "CMD-2"}, seen)
}

func TestSubscriberPanicDoesNotBreakNotification(t *testing.T) {
	m := New(nil)
	var called bool
	m.SubscribeAll(func(domain.ExecutionStatus) { panic("boom") })
	m.SubscribeAll(func(domain.ExecutionStatus) { called = true })

	assert.NotPanics(t, func() { m.Init("CMD-1") })
	assert.True(t, called)
}

func TestFormatStatusReportsUnknownCommand(t *testing.T) {
	m := New(nil)
	assert.Contains(t, m.FormatStatus("CMD-GHOST"), "unknown command")
}

func TestFormatTimelineListsEvents(t *testing.T) {
	m := New(nil)
	m.Init("CMD-1")
	require.NoError(t, m.Transition("CMD-1", domain.StateParsing, "analyzing", "", nil))

	out := m.FormatTimeline("CMD-1")
	assert.Contains(t, out, "CMD-1")
	assert.Contains(t, out, "analyzing")
}
