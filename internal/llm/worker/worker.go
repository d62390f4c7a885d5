// Package worker implements the Responder cmd/llmworker plugs into
// internal/llm/ipc.Server: it owns composing the system prompt and
// few-shot examples around the incoming raw text, making a bounded
// low-temperature call to an OpenAI-compatible chat completions
// endpoint, and falling back to ipc.ExtractJSON when the model wraps
// its answer in prose. Grounded on original_source/brain.py's
// think()/execute() pair — a fixed system prompt listing tools, one
// model call, then brace-scanning the reply for the JSON payload —
// generalized from a hard-coded two-tool prompt and a local
// llama-cpp-python call to the full intent set and an HTTP client
// that can point at any OpenAI-compatible server (hosted or local).
package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/internal/llm/ipc"
)

// Config configures the model call. BaseURL lets the same code talk
// to the hosted OpenAI API or a local OpenAI-compatible server (the
// original's llama-cpp model, fronted by such a server, is one such
// target); Model, MaxTokens, and Temperature are bounded so a single
// parse request can never run away.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Worker implements internal/llm/ipc.Responder.
type Worker struct {
	client openai.Client
	cfg    Config
	log    *logging.Logger
}

// New builds a Worker from cfg. log may be nil.
func New(cfg Config, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.NewFromEnv("llmworker")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Worker{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		log:    log,
	}
}

// Respond satisfies ipc.Responder: it composes the prompt, calls the
// model once, and shapes the reply into the Response internal/pipeline
// expects (either a parsed JSON object in Response, or RawText for the
// pipeline's own ipc.ExtractJSON fallback).
func (w *Worker) Respond(ctx context.Context, req ipc.Request) ipc.Response {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	for _, ex := range fewShot {
		messages = append(messages, openai.UserMessage(ex.user), openai.AssistantMessage(ex.assistant))
	}
	messages = append(messages, openai.UserMessage(composeUserPrompt(req)))

	completion, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(w.cfg.Model),
		Messages:    messages,
		MaxTokens:   openai.Int(w.cfg.MaxTokens),
		Temperature: openai.Float(w.cfg.Temperature),
	})
	if err != nil {
		w.log.WithField("error", err).Warn("llmworker: model call failed")
		return ipc.Response{Success: false, Error: fmt.Sprintf("model call: %v", err)}
	}
	if len(completion.Choices) == 0 {
		return ipc.Response{Success: false, Error: "model returned no choices"}
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	raw, ok := ipc.ExtractJSON(text)
	if !ok {
		return ipc.Response{Success: false, RawText: text, Error: "no JSON object found in model output"}
	}
	return ipc.Response{Success: true, Response: raw, RawText: text}
}

// composeUserPrompt folds any app context the caller attached (the
// inferred-location/name hints internal/worldmodel produces) into the
// user turn, the way original_source/brain.py interpolated the raw
// request directly into its single-shot prompt.
func composeUserPrompt(req ipc.Request) string {
	if len(req.AppContext) == 0 {
		return req.Prompt
	}
	var b strings.Builder
	b.WriteString(req.Prompt)
	b.WriteString("\n\nContext:")
	for k, v := range req.AppContext {
		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}
