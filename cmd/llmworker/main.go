// Command llmworker is the subprocess internal/llm/supervisor spawns
// and probes: it binds internal/llm/ipc's length-prefixed auth-keyed
// protocol on LLM_HOST:LLM_PORT and answers every request with
// internal/llm/worker.Worker, the Responder that composes the prompt
// and calls out to an OpenAI-compatible model endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/internal/llm/ipc"
	"github.com/deskagent/agent/internal/llm/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "llmworker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := worker.LoadEnvConfig()
	if err != nil {
		return err
	}

	log := logging.NewFromEnv("llmworker")
	responder := worker.New(worker.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, log)

	server := ipc.NewServer(cfg.Host, cfg.Port, cfg.AuthKey, responder, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "llmworker listening", map[string]interface{}{"addr": server.Addr})
	return server.ListenAndServe(ctx)
}
