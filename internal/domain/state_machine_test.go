package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardTransitionsAllowed(t *testing.T) {
	assert.True(t, TransitionAllowed(StateInit, StateParsing))
	assert.True(t, TransitionAllowed(StateParsing, StatePolicyCheck))
	assert.True(t, TransitionAllowed(StateNodeRunning, StateNodeDone))
	assert.False(t, TransitionAllowed(StateInit, StatePolicyCheck))
}

func TestSideTransitions(t *testing.T) {
	assert.True(t, TransitionAllowed(StatePolicyCheck, StatePolicyBlocked))
	assert.False(t, TransitionAllowed(StateInit, StatePolicyBlocked))

	assert.True(t, TransitionAllowed(StateNodeRunning, StatePaused))
	assert.True(t, TransitionAllowed(StatePaused, StateNodeRunning))
	assert.False(t, TransitionAllowed(StateNodeDone, StatePaused))

	assert.True(t, TransitionAllowed(StateCompleted, StateRollingBack))
	assert.True(t, TransitionAllowed(StateRollingBack, StateRolledBack))
	assert.False(t, TransitionAllowed(StateFailed, StateRollingBack))
}

func TestCancelAllowedUnlessTerminal(t *testing.T) {
	assert.True(t, TransitionAllowed(StateNodeRunning, StateCancelled))
	assert.False(t, TransitionAllowed(StateCompleted, StateCancelled))
	assert.True(t, TransitionAllowed(StateCancelled, StateCancelled))
}

func TestCommandRecordTransitions(t *testing.T) {
	assert.True(t, CanTransition(CommandStatusPending, CommandStatusProcessing))
	assert.True(t, CanTransition(CommandStatusProcessing, CommandStatusCompleted))
	assert.True(t, CanTransition(CommandStatusCompleted, CommandStatusRolledBack))
	assert.False(t, CanTransition(CommandStatusCompleted, CommandStatusProcessing))
}

func TestScheduledTaskDue(t *testing.T) {
	past := ScheduledTask{Status: ScheduleStatusPending}
	assert.True(t, past.Due(past.RunAt))

	done := ScheduledTask{Status: ScheduleStatusDone}
	assert.False(t, done.Due(done.RunAt))
}
