package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
)

func TestCreatePlanBuildsDraftFromCommands(t *testing.T) {
	p := CreatePlan("CMD-20260730-ABCD", []domain.Command{
		{Intent: domain.IntentCreateFolder, Target: "photos", Loc: "desktop"},
		{Intent: domain.IntentCreateFile, Target: "notes.txt", Loc: "desktop"},
	})

	assert.Equal(t, "PLAN-ABCD", p.PlanID)
	assert.Equal(t, domain.PlanStatusDraft, p.Status)
	assert.Equal(t, 2, p.StepCount())
	assert.Equal(t, 1, p.Steps[1].Index)
}

func TestValidateRejectsUnrecognisedIntent(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.Intent("frobnicate"), Target: "x"}})
	_, err := Validate(p)
	assert.Error(t, err)
}

func TestValidateRejectsMissingTarget(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentCreateFile}})
	_, err := Validate(p)
	assert.Error(t, err)
}

func TestValidateRejectsDeleteOfSystemDirectory(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentDelete, Target: `C:\Windows\System32\config`}})
	_, err := Validate(p)
	assert.Error(t, err)
}

func TestValidateWarnsOnLargePlan(t *testing.T) {
	var commands []domain.Command
	for i := 0; i < 11; i++ {
		commands = append(commands, domain.Command{Intent: domain.IntentCreateFile, Target: "f"})
	}
	p := CreatePlan("CMD-1", commands)
	validated, err := Validate(p)
	require.NoError(t, err)
	assert.NotEmpty(t, validated.Warnings)
	assert.Equal(t, domain.PlanStatusValidated, validated.Status)
}

func TestFreezeRequiresValidated(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentCreateFile, Target: "f"}})
	_, err := Freeze(p)
	assert.Error(t, err)
}

func TestFreezeStampsHashAndTimestamp(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentCreateFile, Target: "f"}})
	validated, err := Validate(p)
	require.NoError(t, err)

	frozen, err := Freeze(validated)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusFrozen, frozen.Status)
	assert.NotEmpty(t, frozen.FrozenHash)
	require.NotNil(t, frozen.FrozenAt)
}

func TestPrepareForExecutionRequiresFrozen(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentCreateFile, Target: "f"}})
	_, _, err := PrepareForExecution(p)
	assert.Error(t, err)
}

func TestPrepareForExecutionDetectsTamperedPlan(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentCreateFile, Target: "f"}})
	validated, err := Validate(p)
	require.NoError(t, err)
	frozen, err := Freeze(validated)
	require.NoError(t, err)

	frozen.Steps[0].Target = "tampered"
	_, _, err = PrepareForExecution(frozen)
	assert.Error(t, err)
}

func TestPrepareForExecutionDetectsTamperedParams(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentMove, Target: "f", Destination: "archive"}})
	validated, err := Validate(p)
	require.NoError(t, err)
	frozen, err := Freeze(validated)
	require.NoError(t, err)

	frozen.Steps[0].Params["destination"] = "C:\\Windows\\System32"
	_, _, err = PrepareForExecution(frozen)
	assert.Error(t, err)
}

func TestPrepareForExecutionSucceedsAndTransitions(t *testing.T) {
	p := CreatePlan("CMD-1", []domain.Command{{Intent: domain.IntentCreateFile, Target: "f"}})
	validated, err := Validate(p)
	require.NoError(t, err)
	frozen, err := Freeze(validated)
	require.NoError(t, err)

	executing, steps, err := PrepareForExecution(frozen)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusExecuting, executing.Status)
	assert.Len(t, steps, 1)
}

func TestMarkCompletedSetsTerminalStatus(t *testing.T) {
	p := domain.ExecutionPlan{Status: domain.PlanStatusExecuting}
	assert.Equal(t, domain.PlanStatusCompleted, MarkCompleted(p, true).Status)
	assert.Equal(t, domain.PlanStatusFailed, MarkCompleted(p, false).Status)
}
