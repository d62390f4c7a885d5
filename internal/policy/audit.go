package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deskagent/agent/infrastructure/security"
)

// AuditLogger appends one JSON line per security-relevant event to a
// file (§4.6/§6: "security_audit.log"), independent of the agent's
// regular stdout logging so it survives log-level filtering.
type AuditLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// NewAuditLogger opens (creating if necessary) path for appending and
// returns a logger writing one JSON object per line to it.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "event",
		},
	})
	logger.SetLevel(logrus.InfoLevel)

	return &AuditLogger{logger: logger, file: file}, nil
}

// Close releases the underlying file handle.
func (a *AuditLogger) Close() error {
	return a.file.Close()
}

// LogThreat records a path-safety violation. path is run through
// security.SanitizeString first — a rejected path came straight from
// the model's output, and a prompt that tried to smuggle a credential
// into a filename shouldn't get it copied verbatim into a log file
// that outlives the request.
func (a *AuditLogger) LogThreat(threatType, path string, blocked bool) {
	a.logger.WithFields(logrus.Fields{
		"threat_type": threatType,
		"path":        security.SanitizeString(path),
		"blocked":     blocked,
	}).Info("THREAT_DETECTED")
}

// LogPolicyDecision records a policy evaluation outcome.
func (a *AuditLogger) LogPolicyDecision(cmdID, intent string, allowed bool, reason string) {
	a.logger.WithFields(logrus.Fields{
		"command_id": cmdID,
		"intent":     intent,
		"allowed":    allowed,
		"reason":     security.SanitizeString(reason),
	}).Info("POLICY_DECISION")
}

// LogProfileChange records a profile switch.
func (a *AuditLogger) LogProfileChange(oldProfile, newProfile string) {
	a.logger.WithFields(logrus.Fields{
		"old_profile": oldProfile,
		"new_profile": newProfile,
	}).Info("PROFILE_CHANGE")
}
