package worker

import (
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// EnvConfig is cmd/llmworker's own configuration surface: the worker
// is a standalone binary the Supervisor exec.CommandContexts, so it
// reads its environment directly rather than sharing
// internal/platform/config.Config with the parent process. It mirrors
// internal/platform/config's precedence (.env, then process
// environment) and its envdecode-tag convention.
type EnvConfig struct {
	Host    string `env:"LLM_HOST,default=localhost"`
	Port    int    `env:"LLM_PORT,default=6000"`
	AuthKey string `env:"LLM_AUTH_KEY"`

	APIKey      string  `env:"LLM_WORKER_API_KEY"`
	BaseURL     string  `env:"LLM_WORKER_BASE_URL"`
	Model       string  `env:"LLM_WORKER_MODEL,default=gpt-4o-mini"`
	MaxTokens   int64   `env:"LLM_WORKER_MAX_TOKENS,default=300"`
	Temperature float64 `env:"LLM_WORKER_TEMPERATURE,default=0.1"`
}

// LoadEnvConfig loads the worker's environment configuration.
func LoadEnvConfig() (EnvConfig, error) {
	_ = godotenv.Load()
	cfg := EnvConfig{Host: "localhost", Port: 6000, Model: "gpt-4o-mini", MaxTokens: 300, Temperature: 0.1}
	if err := envdecode.Decode(&cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return cfg, fmt.Errorf("decode env: %w", err)
		}
	}
	return cfg, nil
}
