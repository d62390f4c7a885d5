package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateClarificationAsksWhenNothingKnown(t *testing.T) {
	c := GenerateClarification("open", []string{"target"}, nil, "en")
	assert.False(t, c.IsConfirmation())
	assert.Contains(t, c.Question, "what should I open")
}

func TestGenerateClarificationConfirmsWhenDefaultsFillBlanks(t *testing.T) {
	c := GenerateClarification("watch", []string{"loc"}, nil, "en")
	assert.True(t, c.IsConfirmation())
	assert.Contains(t, c.Question, "downloads")
}

func TestGenerateClarificationUnknownLanguageFallsBackToEnglish(t *testing.T) {
	c := GenerateClarification("watch", []string{"loc"}, nil, "fr")
	assert.True(t, c.IsConfirmation())
	assert.Contains(t, c.Question, "downloads")
}

func TestGenerateClarificationArabic(t *testing.T) {
	c := GenerateClarification("watch", []string{"loc"}, nil, "ar")
	assert.Contains(t, c.Question, "التنزيلات")
}

func TestParseResponseConfirm(t *testing.T) {
	c := Clarification{Suggestions: map[string]string{"loc": "desktop"}}
	action, updates := ParseResponse("yes", c)
	assert.Equal(t, "confirm", action)
	assert.Equal(t, "desktop", updates["loc"])
}

func TestParseResponseCancel(t *testing.T) {
	action, _ := ParseResponse("cancel", Clarification{})
	assert.Equal(t, "cancel", action)
}

func TestParseResponseLocationPhrase(t *testing.T) {
	action, updates := ParseResponse("put it in downloads", Clarification{})
	assert.Equal(t, "update", action)
	assert.Equal(t, "downloads", updates["loc"])
}

func TestParseResponseShortReplyFillsMissingTarget(t *testing.T) {
	c := Clarification{MissingFields: []string{"target"}}
	action, updates := ParseResponse("notes.txt", c)
	assert.Equal(t, "update", action)
	assert.Equal(t, "notes.txt", updates["target"])
}

func TestParseResponseUnknown(t *testing.T) {
	action, _ := ParseResponse("something completely different here", Clarification{})
	assert.Equal(t, "unknown", action)
}
