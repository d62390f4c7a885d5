package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		service string
		level   string
		format  string
	}{
		{"json logger", "test-service", "info", "json"},
		{"text logger", "test-service", "debug", "text"},
		{"invalid level", "test-service", "invalid", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.service, tt.level, tt.format)
			require.NotNil(t, logger)
			assert.Equal(t, tt.service, logger.service)
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	logger := New("test", "info", "json")
	ctx := context.Background()
	ctx = WithCommandIDContext(ctx, "CMD-20260730-ABCD")
	ctx = WithWatchIDContext(ctx, "deadbeef")

	entry := logger.WithContext(ctx)
	require.NotNil(t, entry)
	assert.Equal(t, "test", entry.Data["service"])
	assert.Equal(t, "CMD-20260730-ABCD", entry.Data["command_id"])
	assert.Equal(t, "deadbeef", entry.Data["watch_id"])
}

func TestLogger_WithContext_NoValues(t *testing.T) {
	logger := New("test", "info", "json")
	entry := logger.WithContext(context.Background())
	assert.Equal(t, "test", entry.Data["service"])
	assert.NotContains(t, entry.Data, "command_id")
	assert.NotContains(t, entry.Data, "watch_id")
}

func TestCommandIDContextRoundTrip(t *testing.T) {
	ctx := WithCommandIDContext(context.Background(), "CMD-20260730-0001")
	assert.Equal(t, "CMD-20260730-0001", GetCommandID(ctx))
	assert.Empty(t, GetCommandID(context.Background()))
}

func TestWatchIDContextRoundTrip(t *testing.T) {
	ctx := WithWatchIDContext(context.Background(), "0a1b2c3d")
	assert.Equal(t, "0a1b2c3d", GetWatchID(ctx))
}

func TestServiceContextRoundTrip(t *testing.T) {
	ctx := WithService(context.Background(), "scheduler")
	assert.Equal(t, "scheduler", GetService(ctx))
}

func TestLogger_WithFields_InjectsService(t *testing.T) {
	logger := New("test", "info", "json")
	entry := logger.WithFields(map[string]interface{}{"foo": "bar"})
	assert.Equal(t, "test", entry.Data["service"])
	assert.Equal(t, "bar", entry.Data["foo"])
}

func TestLogger_WithError(t *testing.T) {
	logger := New("test", "info", "json")
	entry := logger.WithError(errors.New("boom"))
	assert.Equal(t, "boom", entry.Data["error"])
}

func TestLogger_SetOutput(t *testing.T) {
	logger := New("test", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.Info(context.Background(), "hello", nil)
	assert.Contains(t, buf.String(), "hello")
}

func TestLogNodeExecution(t *testing.T) {
	logger := New("test", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.LogNodeExecution(context.Background(), "node-1", "create_folder", 0, nil)
	assert.Contains(t, buf.String(), "node execution completed")

	buf.Reset()
	logger.LogNodeExecution(context.Background(), "node-2", "write_file", 0, errors.New("disk full"))
	assert.Contains(t, buf.String(), "node execution failed")
}

func TestLogPolicyDecision(t *testing.T) {
	logger := New("test", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.LogPolicyDecision(context.Background(), "delete", false, "protected path")
	assert.Contains(t, buf.String(), "policy decision")
	assert.Contains(t, buf.String(), "protected path")
}

func TestLogRollback(t *testing.T) {
	logger := New("test", "info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.LogRollback(context.Background(), 2, 0, nil)
	assert.Contains(t, buf.String(), "rollback completed")
}

func TestDefault(t *testing.T) {
	defaultLogger = nil
	l := Default()
	require.NotNil(t, l)
	assert.Same(t, l, Default())
}

func TestNewCommandID(t *testing.T) {
	a := NewCommandID()
	b := NewCommandID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
