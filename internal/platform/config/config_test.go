package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "power", cfg.Agent.Profile)
	assert.Equal(t, 10, cfg.Agent.PipelineRatePerMin)
	assert.Equal(t, "localhost", cfg.LLM.Host)
	assert.Equal(t, 6000, cfg.LLM.Port)
	assert.Equal(t, 60, cfg.LLM.ReadyTimeoutSecs)
	assert.True(t, cfg.Database.MigrateOnStart)
}

func TestLearningAndJarvisDBPaths(t *testing.T) {
	cfg := New()
	cfg.Database.DataDir = "/data"
	assert.Equal(t, filepath.Join("/data", "learning.db"), cfg.Database.LearningDBPath())
	assert.Equal(t, filepath.Join("/data", "jarvis.db"), cfg.Database.JarvisDBPath())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := []byte("agent:\n  profile: safe\nllm:\n  port: 7000\n")
	require.NoError(t, os.WriteFile(path, yamlContent, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "safe", cfg.Agent.Profile)
	assert.Equal(t, 7000, cfg.LLM.Port)
	// Unset fields keep their defaults.
	assert.Equal(t, "localhost", cfg.LLM.Host)
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, New().Agent.Profile, cfg.Agent.Profile)
}
