package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentValid(t *testing.T) {
	assert.True(t, IntentCreateFile.Valid())
	assert.True(t, IntentUnknown.Valid())
	assert.False(t, Intent("bogus").Valid())
}

func TestIntentClassification(t *testing.T) {
	assert.True(t, IntentCreateFile.IsImperative())
	assert.True(t, IntentWatch.IsReactive())
	assert.False(t, IntentWatch.IsImperative())
	assert.False(t, IntentOpen.IsReactive())
}

func TestCommandInferredTracking(t *testing.T) {
	c := &Command{Intent: IntentCreateFile}
	assert.True(t, c.IsFieldExplicit("target"))

	c.MarkInferred("target")
	assert.False(t, c.IsFieldExplicit("target"))
	assert.True(t, c.IsFieldExplicit("loc"))
}

func TestRequiresTarget(t *testing.T) {
	assert.True(t, Command{Intent: IntentDelete}.RequiresTarget())
	assert.False(t, Command{Intent: IntentReminder}.RequiresTarget())
}
