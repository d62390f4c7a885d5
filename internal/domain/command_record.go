package domain

import "time"

// CommandStatus is the terminal/non-terminal lifecycle state of a
// CommandRecord (§3).
type CommandStatus string

const (
	CommandStatusPending     CommandStatus = "PENDING"
	CommandStatusProcessing  CommandStatus = "PROCESSING"
	CommandStatusCompleted   CommandStatus = "COMPLETED"
	CommandStatusFailed      CommandStatus = "FAILED"
	CommandStatusCancelled   CommandStatus = "CANCELLED"
	CommandStatusRolledBack  CommandStatus = "ROLLED_BACK"
)

// IsTerminal reports whether s is a status from which a CommandRecord
// never advances.
func (s CommandStatus) IsTerminal() bool {
	switch s {
	case CommandStatusCompleted, CommandStatusFailed, CommandStatusCancelled, CommandStatusRolledBack:
		return true
	default:
		return false
	}
}

// legalCommandTransitions enumerates the allowed status advances; a
// status may always transition to itself (idempotent re-stamping) in
// addition to the listed successors.
var legalCommandTransitions = map[CommandStatus][]CommandStatus{
	CommandStatusPending:    {CommandStatusProcessing, CommandStatusCancelled, CommandStatusFailed},
	CommandStatusProcessing: {CommandStatusCompleted, CommandStatusFailed, CommandStatusCancelled},
	CommandStatusCompleted:  {CommandStatusRolledBack},
}

// CanTransition reports whether a CommandRecord may move from from to to.
func CanTransition(from, to CommandStatus) bool {
	if from == to {
		return true
	}
	for _, next := range legalCommandTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CommandRecord is a row in the Command Registry (C1). ID format is
// "CMD-YYYYMMDD-XXXX" (date plus four upper-hex digits).
type CommandRecord struct {
	ID                string
	RawInput          string
	Intent            Intent
	Status            CommandStatus
	Result            string
	Error             string
	RollbackAvailable bool
	CreatedAt         time.Time
	CompletedAt       *time.Time
}
