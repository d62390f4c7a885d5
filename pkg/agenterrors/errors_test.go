package agenterrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentError_Error(t *testing.T) {
	plain := New(KindPolicy, "blocked path", http.StatusForbidden)
	assert.Equal(t, "[POLICY] blocked path", plain.Error())

	wrapped := Wrap(KindInternal, "boom", http.StatusInternalServerError, errors.New("disk full"))
	assert.Equal(t, "[INTERNAL] boom: disk full", wrapped.Error())
}

func TestAgentError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	wrapped := Wrap(KindRollback, "failed", http.StatusInternalServerError, cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestWithDetails(t *testing.T) {
	err := New(KindValidation, "bad field", http.StatusBadRequest).
		WithDetails("field", "target").
		WithDetails("reason", "empty")
	assert.Equal(t, "target", err.Details["field"])
	assert.Equal(t, "empty", err.Details["reason"])
}

func TestPerKindConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  *AgentError
		kind Kind
	}{
		{"parse", ParseError("not json", errors.New("eof")), KindParse},
		{"validation", ValidationError("target", "required"), KindValidation},
		{"policy", PolicyError("delete", "protected path"), KindPolicy},
		{"integrity", IntegrityError("PLAN-1"), KindIntegrity},
		{"rule", RuleViolationError("write-requires-create", "no create node"), KindRuleViolation},
		{"node", NodeExecutionError("node-1", "write_file", errors.New("eacces")), KindNodeExecution},
		{"timeout", TimeoutError("copy"), KindTimeout},
		{"ipc", IPCUnavailableError(errors.New("refused")), KindIPCUnavailable},
		{"rollback", RollbackError("CMD-1", 1, errors.New("missing backup")), KindRollback},
		{"internal", InternalError("unexpected", errors.New("nil pointer")), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.err.Kind)
			assert.True(t, Is(tc.err, tc.kind))
		})
	}
}

func TestGetAndHTTPStatus(t *testing.T) {
	err := PolicyError("delete", "protected path")
	var wrapped error = errors.Join(errors.New("context"), err)

	got := Get(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, KindPolicy, got.Kind)
	assert.Equal(t, http.StatusForbidden, HTTPStatus(wrapped))

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
	assert.Nil(t, Get(errors.New("plain")))
}

func TestRateLimitExceeded(t *testing.T) {
	err := RateLimitExceeded(10, "60s")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 10, err.Details["limit"])
	assert.Equal(t, "60s", err.Details["window"])
}
