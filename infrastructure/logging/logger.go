// Package logging provides structured, context-aware logging. Every log
// line emitted while a command moves through the pipeline carries that
// command's id without the caller threading it through every signature.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys.
type ContextKey string

const (
	// CommandIDKey is the context key for the active command id.
	CommandIDKey ContextKey = "command_id"
	// WatchIDKey is the context key for the active watch id.
	WatchIDKey ContextKey = "watch_id"
	// ServiceKey is the context key for the service name.
	ServiceKey ContextKey = "service"
)

// Logger wraps logrus.Logger with pipeline-aware context helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new Logger instance.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{
		Logger:  logger,
		service: service,
	}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables. Defaults to "info" and "json" when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext creates a new logger entry carrying the command/watch id found
// in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)

	if commandID := ctx.Value(CommandIDKey); commandID != nil {
		entry = entry.WithField("command_id", commandID)
	}
	if watchID := ctx.Value(WatchIDKey); watchID != nil {
		entry = entry.WithField("watch_id", watchID)
	}

	return entry
}

// WithCommandID creates a new logger entry tagged with a command id.
func (l *Logger) WithCommandID(commandID string) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service":    l.service,
		"command_id": commandID,
	})
}

// WithFields creates a new logger entry with custom fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError creates a new logger entry with an error field.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service": l.service,
		"error":   err.Error(),
	})
}

// SetOutput sets the logger output.
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// Context helper functions.

// NewCommandID generates a fresh opaque id suitable for correlating log
// lines that are not yet attached to a registered CommandRecord.
func NewCommandID() string {
	return uuid.New().String()
}

// WithCommandIDContext attaches a command id to ctx.
func WithCommandIDContext(ctx context.Context, commandID string) context.Context {
	return context.WithValue(ctx, CommandIDKey, commandID)
}

// GetCommandID retrieves the command id from ctx.
func GetCommandID(ctx context.Context) string {
	if commandID, ok := ctx.Value(CommandIDKey).(string); ok {
		return commandID
	}
	return ""
}

// WithWatchIDContext attaches a watch id to ctx.
func WithWatchIDContext(ctx context.Context, watchID string) context.Context {
	return context.WithValue(ctx, WatchIDKey, watchID)
}

// GetWatchID retrieves the watch id from ctx.
func GetWatchID(ctx context.Context) string {
	if watchID, ok := ctx.Value(WatchIDKey).(string); ok {
		return watchID
	}
	return ""
}

// WithService adds a service name to the context.
func WithService(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, ServiceKey, service)
}

// GetService retrieves the service name from context.
func GetService(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceKey).(string); ok {
		return serviceName
	}
	return ""
}

// Structured logging helpers

// LogRequest logs an HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("http request")
}

// LogNodeExecution logs the result of running one execution-graph node.
func (l *Logger) LogNodeExecution(ctx context.Context, nodeID, intent string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"node_id":     nodeID,
		"intent":      intent,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("node execution failed")
	} else {
		entry.Info("node execution completed")
	}
}

// LogPolicyDecision logs a policy gate decision.
func (l *Logger) LogPolicyDecision(ctx context.Context, intent string, allowed bool, reason string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"intent":  intent,
		"allowed": allowed,
		"reason":  reason,
	}).Info("policy decision")
}

// LogRollback logs the outcome of a rollback attempt.
func (l *Logger) LogRollback(ctx context.Context, rolledBack, failed int, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"rolled_back": rolledBack,
		"failed":      failed,
	})
	if err != nil {
		entry.WithError(err).Error("rollback completed with errors")
	} else {
		entry.Info("rollback completed")
	}
}

// LogSecurityEvent logs a security-related event.
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType string, details map[string]interface{}) {
	fields := logrus.Fields{
		"event_type": eventType,
		"severity":   "security",
	}
	for k, v := range details {
		fields[k] = v
	}

	l.WithContext(ctx).WithFields(fields).Warn("security event")
}

// LogAudit logs an audit event.
func (l *Logger) LogAudit(ctx context.Context, action, resource, resourceID, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action":      action,
		"resource":    resource,
		"resource_id": resourceID,
		"result":      result,
		"audit":       true,
	}).Info("audit log")
}

// LogPerformance logs performance metrics.
func (l *Logger) LogPerformance(ctx context.Context, operation string, metrics map[string]interface{}) {
	fields := logrus.Fields{
		"operation": operation,
		"type":      "performance",
	}
	for k, v := range metrics {
		fields[k] = v
	}

	l.WithContext(ctx).WithFields(fields).Info("performance metrics")
}

// Fatal logs a fatal error and exits.
func (l *Logger) Fatal(ctx context.Context, message string, err error) {
	l.WithContext(ctx).WithError(err).Fatal(message)
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Debug(message)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Info(message)
}

// Warn logs a warning message.
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Warn(message)
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	entry := l.WithContext(ctx)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.WithFields(fields).Error(message)
}

// Global logger instance, initialized once at startup.
var defaultLogger *Logger

// InitDefault initializes the default logger.
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the default logger, falling back to a basic one if
// InitDefault was never called.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("deskagent", "info", "json")
	}
	return defaultLogger
}

// FormatDuration formats a duration in milliseconds for human-readable logs.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
}
