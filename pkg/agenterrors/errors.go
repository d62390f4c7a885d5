// Package agenterrors provides the agent's unified error taxonomy: every
// pipeline failure maps to exactly one Kind, carries a human-readable
// message, and is extractable from an error chain via errors.As.
package agenterrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	// KindParse — model output not convertible to a valid Command.
	KindParse Kind = "PARSE"
	// KindValidation — plan step fails schema or required-field rules.
	KindValidation Kind = "VALIDATION"
	// KindPolicy — path blocked, profile not allowed, or security check rejected.
	KindPolicy Kind = "POLICY"
	// KindIntegrity — frozen plan hash mismatch before execution.
	KindIntegrity Kind = "INTEGRITY"
	// KindRuleViolation — graph rule failed after auto-repair.
	KindRuleViolation Kind = "RULE_VIOLATION"
	// KindNodeExecution — the underlying side effect failed.
	KindNodeExecution Kind = "NODE_EXECUTION"
	// KindTimeout — deadline for a node or an IPC call exceeded.
	KindTimeout Kind = "TIMEOUT"
	// KindIPCUnavailable — LLM worker not reachable.
	KindIPCUnavailable Kind = "IPC_UNAVAILABLE"
	// KindRollback — a reverse action failed (partial rollback recorded).
	KindRollback Kind = "ROLLBACK"
	// KindInternal — any uncaught condition; always surfaces as FAILED.
	KindInternal Kind = "INTERNAL"
)

// AgentError is a structured error carrying a stable Kind, a message, and
// optional details plus a wrapped cause.
type AgentError struct {
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// WithDetails adds a detail key/value and returns the receiver for chaining.
func (e *AgentError) WithDetails(key string, value interface{}) *AgentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AgentError with no wrapped cause.
func New(kind Kind, message string, httpStatus int) *AgentError {
	return &AgentError{Kind: kind, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates a new AgentError around an existing error.
func Wrap(kind Kind, message string, httpStatus int, err error) *AgentError {
	return &AgentError{Kind: kind, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Per-kind constructors, one per §7 error taxonomy entry.

// ParseError — raw model output could not be parsed into a Command.
func ParseError(rawText string, err error) *AgentError {
	return Wrap(KindParse, "model output is not a valid command", http.StatusBadGateway, err).
		WithDetails("raw_text", rawText)
}

// ValidationError — a plan step failed schema or required-field validation.
func ValidationError(field, reason string) *AgentError {
	return New(KindValidation, "plan step failed validation", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// PolicyError — the policy engine rejected the request.
func PolicyError(intent, reason string) *AgentError {
	return New(KindPolicy, reason, http.StatusForbidden).
		WithDetails("intent", intent)
}

// IntegrityError — a frozen plan's hash no longer matches its steps.
func IntegrityError(planID string) *AgentError {
	return New(KindIntegrity, "frozen plan hash mismatch", http.StatusConflict).
		WithDetails("plan_id", planID)
}

// RuleViolationError — a graph structural rule failed after auto-repair.
func RuleViolationError(rule, detail string) *AgentError {
	return New(KindRuleViolation, detail, http.StatusUnprocessableEntity).
		WithDetails("rule", rule)
}

// NodeExecutionError — a node's side effect failed to run.
func NodeExecutionError(nodeID, intent string, err error) *AgentError {
	return Wrap(KindNodeExecution, "node execution failed", http.StatusInternalServerError, err).
		WithDetails("node_id", nodeID).
		WithDetails("intent", intent)
}

// TimeoutError — a node or IPC call exceeded its deadline.
func TimeoutError(operation string) *AgentError {
	return New(KindTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

// IPCUnavailableError — the LLM worker could not be reached.
func IPCUnavailableError(err error) *AgentError {
	return Wrap(KindIPCUnavailable, "llm worker unavailable", http.StatusServiceUnavailable, err)
}

// RollbackError — a reverse action failed during rollback.
func RollbackError(commandID string, failedCount int, err error) *AgentError {
	return Wrap(KindRollback, "rollback completed with errors", http.StatusInternalServerError, err).
		WithDetails("command_id", commandID).
		WithDetails("failed_count", failedCount)
}

// InternalError — any uncaught condition.
func InternalError(message string, err error) *AgentError {
	return Wrap(KindInternal, message, http.StatusInternalServerError, err)
}

// RateLimitExceeded — the pipeline-entry token bucket rejected the request.
func RateLimitExceeded(limit int, window string) *AgentError {
	return New(KindPolicy, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Helper functions.

// Is reports whether err is (or wraps) an AgentError of the given kind.
func Is(err error, kind Kind) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// Get extracts an *AgentError from an error chain, if present.
func Get(err error) *AgentError {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HTTPStatus returns the HTTP status code associated with err, defaulting to
// 500 for errors that are not AgentErrors.
func HTTPStatus(err error) int {
	if ae := Get(err); ae != nil {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}
