package domain

import "time"

// PlanStatus is the lifecycle state of an ExecutionPlan (§3).
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusValidated PlanStatus = "VALIDATED"
	PlanStatusFrozen    PlanStatus = "FROZEN"
	PlanStatusExecuting PlanStatus = "EXECUTING"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusFailed    PlanStatus = "FAILED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// PlanStep is one ordered step of an ExecutionPlan.
type PlanStep struct {
	Index    int
	Intent   Intent
	Target   string
	Location string
	Params   map[string]string
}

// ExecutionPlan is immutable once frozen: PlanID = "PLAN-" + the
// command id's date-and-hex suffix. FrozenHash is the truncated
// SHA-256 of a canonical JSON encoding of (PlanID, CommandID, Steps),
// computed at freeze time and re-verified before execution so that any
// post-freeze mutation of step fields is detectable.
type ExecutionPlan struct {
	PlanID     string
	CommandID  string
	Steps      []PlanStep
	Status     PlanStatus
	Warnings   []string
	FrozenHash string
	FrozenAt   *time.Time
}

// StepCount returns the number of steps currently in the plan.
func (p *ExecutionPlan) StepCount() int {
	return len(p.Steps)
}
