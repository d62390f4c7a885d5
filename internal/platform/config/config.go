// Package config loads the agent's configuration with the same
// precedence the teacher uses: built-in defaults, then a YAML file,
// then environment variables (which always win).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP API (§6).
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls the sqlite-backed durable stores (Learning
// Store, Scheduler).
type DatabaseConfig struct {
	Driver         string `json:"driver" yaml:"driver" env:"DATABASE_DRIVER"`
	DataDir        string `json:"data_dir" yaml:"data_dir" env:"AGENT_DATA_DIR"`
	LearningDBFile string `json:"learning_db_file" yaml:"learning_db_file" env:"LEARNING_DB_FILE"`
	JarvisDBFile   string `json:"jarvis_db_file" yaml:"jarvis_db_file" env:"JARVIS_DB_FILE"`
	MaxOpenConns   int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns   int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MigrateOnStart bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LearningDBPath returns the absolute path of learning.db under DataDir.
func (d DatabaseConfig) LearningDBPath() string {
	return filepath.Join(d.DataDir, d.LearningDBFile)
}

// JarvisDBPath returns the absolute path of jarvis.db under DataDir.
func (d DatabaseConfig) JarvisDBPath() string {
	return filepath.Join(d.DataDir, d.JarvisDBFile)
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// AgentConfig carries the runtime knobs that live in config.json per
// §6 (profile, language, notification toggle) plus the pipeline
// rate limit and the trash retention window.
type AgentConfig struct {
	Profile             string `json:"profile" yaml:"profile" env:"AGENT_PROFILE"`
	Language            string `json:"language" yaml:"language" env:"AGENT_LANGUAGE"`
	NotificationsOn     bool   `json:"notifications_on" yaml:"notifications_on" env:"AGENT_NOTIFICATIONS_ON"`
	PipelineRatePerMin  int    `json:"pipeline_rate_per_min" yaml:"pipeline_rate_per_min" env:"AGENT_PIPELINE_RATE_PER_MIN"`
	TrashRetentionHours int    `json:"trash_retention_hours" yaml:"trash_retention_hours" env:"AGENT_TRASH_RETENTION_HOURS"`
}

// LLMConfig controls the out-of-process model worker and its
// supervisor (C14, §6).
type LLMConfig struct {
	Host              string   `json:"host" yaml:"host" env:"LLM_HOST"`
	Port              int      `json:"port" yaml:"port" env:"LLM_PORT"`
	AuthKey           string   `json:"auth_key" yaml:"auth_key" env:"LLM_AUTH_KEY"`
	ProbeIntervalSecs int      `json:"probe_interval_secs" yaml:"probe_interval_secs" env:"LLM_PROBE_INTERVAL_SECS"`
	ReadyTimeoutSecs  int      `json:"ready_timeout_secs" yaml:"ready_timeout_secs" env:"LLM_READY_TIMEOUT_SECS"`
	CallTimeoutSecs   int      `json:"call_timeout_secs" yaml:"call_timeout_secs" env:"LLM_CALL_TIMEOUT_SECS"`
	MaxRestartStreak  int      `json:"max_restart_streak" yaml:"max_restart_streak" env:"LLM_MAX_RESTART_STREAK"`
	WorkerPath        string   `json:"worker_path" yaml:"worker_path" env:"LLM_WORKER_PATH"`
	WorkerArgs        []string `json:"worker_args" yaml:"worker_args" env:"LLM_WORKER_ARGS"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Agent    AgentConfig    `json:"agent" yaml:"agent"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
}

// New returns a configuration populated with the defaults named in §5
// and §6: profile "power", a 10-req/60s pipeline rate limit, LLM on
// localhost:6000, 60s worker readiness, 30s call deadline.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			DataDir:        defaultDataDir(),
			LearningDBFile: "learning.db",
			JarvisDBFile:   "jarvis.db",
			MaxOpenConns:   5,
			MaxIdleConns:   2,
			MigrateOnStart: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			FilePrefix: "deskagent",
		},
		Agent: AgentConfig{
			Profile:             "power",
			Language:            "en",
			NotificationsOn:     true,
			PipelineRatePerMin:  10,
			TrashRetentionHours: 72,
		},
		LLM: LLMConfig{
			Host:              "localhost",
			Port:              6000,
			ProbeIntervalSecs: 5,
			ReadyTimeoutSecs:  60,
			CallTimeoutSecs:   30,
			MaxRestartStreak:  3,
			WorkerPath:        "./bin/llmworker",
		},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".deskagent")
	}
	return ".deskagent"
}

// Load applies a YAML file over the defaults, then the environment over
// both. Values from .env are loaded into the environment first (never
// replacing a variable already set), so they too override the YAML file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file, skipping .env/env
// overrides. Used by tests that want a fully deterministic config.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
