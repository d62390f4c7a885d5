package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/llm/ipc"
)

// fakeChatServer answers any POST to /chat/completions with a fixed
// assistant message, the way an OpenAI-compatible local inference
// server would — letting Worker.Respond be exercised without a real
// model behind it.
func fakeChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]string{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
		})
	}))
}

func TestRespondReturnsParsedJSONOnSuccess(t *testing.T) {
	srv := fakeChatServer(t, `{"intent":"open","target":"spotify"}`)
	defer srv.Close()

	w := New(Config{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 100, Temperature: 0}, nil)
	resp := w.Respond(context.Background(), ipc.Request{Prompt: "open spotify"})

	require.True(t, resp.Success)
	assert.JSONEq(t, `{"intent":"open","target":"spotify"}`, string(resp.Response))
}

func TestRespondExtractsJSONFromSurroundingProse(t *testing.T) {
	srv := fakeChatServer(t, "Sure thing! Here's the command: {\"intent\":\"open\",\"target\":\"notepad\"} — let me know if you need anything else.")
	defer srv.Close()

	w := New(Config{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 100, Temperature: 0}, nil)
	resp := w.Respond(context.Background(), ipc.Request{Prompt: "open notepad"})

	require.True(t, resp.Success)
	assert.JSONEq(t, `{"intent":"open","target":"notepad"}`, string(resp.Response))
}

func TestRespondFailsWhenNoJSONFound(t *testing.T) {
	srv := fakeChatServer(t, "I'm not sure what you mean.")
	defer srv.Close()

	w := New(Config{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 100, Temperature: 0}, nil)
	resp := w.Respond(context.Background(), ipc.Request{Prompt: "???"})

	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestComposeUserPromptFoldsInAppContext(t *testing.T) {
	prompt := composeUserPrompt(ipc.Request{Prompt: "move it", AppContext: map[string]string{"last_target": "report.pdf"}})
	assert.Contains(t, prompt, "move it")
	assert.Contains(t, prompt, "last_target: report.pdf")
}
