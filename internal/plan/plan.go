// Package plan implements the Planner (C7, §4.7): it accumulates a
// command sequence into a DRAFT ExecutionPlan, validates it, and
// carries it through FROZEN and EXECUTING to a terminal state with an
// integrity hash that detects any post-freeze mutation.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/deskagent/agent/internal/domain"
)

// maxStepsWithoutWarning is the plan-length threshold past which
// Validate appends a size warning rather than rejecting the plan
// (§4.7).
const maxStepsWithoutWarning = 10

// targetRequiredIntents are the intents a non-empty target is
// mandatory for.
var targetRequiredIntents = map[domain.Intent]bool{
	domain.IntentOpen:         true,
	domain.IntentOpenFile:     true,
	domain.IntentCreateFolder: true,
	domain.IntentCreateFile:   true,
	domain.IntentWriteFile:    true,
	domain.IntentDelete:       true,
	domain.IntentRename:       true,
	domain.IntentCopy:         true,
	domain.IntentMove:         true,
	domain.IntentWatch:        true,
	domain.IntentClean:        true,
}

// deleteForbiddenSubstrings guard against a delete plan step that
// would touch a system directory (§4.7); the Policy Engine's path
// safety check runs independently at execution time, this is an
// earlier, planning-time backstop.
var deleteForbiddenSubstrings = []string{"system32", "windows", "program files"}

// Builder accumulates PlanSteps from a Command sequence before
// producing a DRAFT ExecutionPlan.
type Builder struct {
	steps []domain.PlanStep
}

// NewBuilder returns an empty plan builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends cmd as the next step.
func (b *Builder) Add(cmd domain.Command) *Builder {
	b.steps = append(b.steps, domain.PlanStep{
		Index:    len(b.steps),
		Intent:   cmd.Intent,
		Target:   cmd.Target,
		Location: cmd.Loc,
		Params:   commandParams(cmd),
	})
	return b
}

// CreatePlan produces a DRAFT ExecutionPlan from cmdID and commands,
// the builder's accumulated steps forming its step list.
func CreatePlan(cmdID string, commands []domain.Command) domain.ExecutionPlan {
	builder := NewBuilder()
	for _, cmd := range commands {
		builder.Add(cmd)
	}
	return domain.ExecutionPlan{
		PlanID:    planID(cmdID),
		CommandID: cmdID,
		Steps:     builder.steps,
		Status:    domain.PlanStatusDraft,
	}
}

func planID(cmdID string) string {
	suffix := cmdID
	if idx := strings.LastIndex(cmdID, "-"); idx >= 0 {
		suffix = cmdID[idx+1:]
	}
	return "PLAN-" + suffix
}

func commandParams(cmd domain.Command) map[string]string {
	params := make(map[string]string)
	if cmd.Destination != "" {
		params["destination"] = cmd.Destination
	}
	if cmd.ActionType != "" {
		params["action_type"] = cmd.ActionType
	}
	if cmd.FilterKey != "" {
		params["filter_key"] = cmd.FilterKey
	}
	if cmd.Cmd != "" {
		params["cmd"] = cmd.Cmd
	}
	if cmd.Param != "" {
		params["param"] = cmd.Param
	}
	if cmd.WatchID != "" {
		params["watch_id"] = cmd.WatchID
	}
	if cmd.Time != "" {
		params["time"] = cmd.Time
	}
	if cmd.Delay != 0 {
		params["delay"] = strconv.Itoa(cmd.Delay)
	}
	if cmd.Repeat != "" {
		params["repeat"] = cmd.Repeat
	}
	if cmd.OnChange != nil {
		if encoded, err := json.Marshal(cmd.OnChange); err == nil {
			params["on_change"] = string(encoded)
		}
	}
	return params
}

// Validate checks plan against the planning rules (§4.7): every
// intent must be recognised, target-requiring intents need a
// non-empty target, a delete target may not reference a system
// directory, and a plan over maxStepsWithoutWarning steps earns a
// warning rather than a rejection. On success plan's status becomes
// VALIDATED.
func Validate(p domain.ExecutionPlan) (domain.ExecutionPlan, error) {
	for _, step := range p.Steps {
		if !step.Intent.Valid() {
			return p, fmt.Errorf("plan step %d: unrecognised intent %q", step.Index, step.Intent)
		}
		if targetRequiredIntents[step.Intent] && strings.TrimSpace(step.Target) == "" {
			return p, fmt.Errorf("plan step %d: intent %q requires a target", step.Index, step.Intent)
		}
		if step.Intent == domain.IntentDelete {
			lower := strings.ToLower(step.Target)
			for _, forbidden := range deleteForbiddenSubstrings {
				if strings.Contains(lower, forbidden) {
					return p, fmt.Errorf("plan step %d: delete target %q touches a system directory", step.Index, step.Target)
				}
			}
		}
	}

	p.Warnings = nil
	if len(p.Steps) > maxStepsWithoutWarning {
		p.Warnings = append(p.Warnings, fmt.Sprintf("plan has %d steps, over the %d-step guideline", len(p.Steps), maxStepsWithoutWarning))
	}

	p.Status = domain.PlanStatusValidated
	return p, nil
}

// Freeze requires p to be VALIDATED; it stamps FrozenAt, computes
// FrozenHash over the plan's identity and steps, and transitions to
// FROZEN.
func Freeze(p domain.ExecutionPlan) (domain.ExecutionPlan, error) {
	if p.Status != domain.PlanStatusValidated {
		return p, fmt.Errorf("freeze: plan %s is %s, not VALIDATED", p.PlanID, p.Status)
	}

	now := time.Now().UTC()
	p.FrozenAt = &now
	p.FrozenHash = computeHash(p)
	p.Status = domain.PlanStatusFrozen
	return p, nil
}

// PrepareForExecution recomputes p's hash and rejects on mismatch
// (detecting any post-freeze mutation), then transitions FROZEN to
// EXECUTING and returns the step list.
func PrepareForExecution(p domain.ExecutionPlan) (domain.ExecutionPlan, []domain.PlanStep, error) {
	if p.Status != domain.PlanStatusFrozen {
		return p, nil, fmt.Errorf("prepare for execution: plan %s is %s, not FROZEN", p.PlanID, p.Status)
	}
	if computeHash(p) != p.FrozenHash {
		return p, nil, fmt.Errorf("prepare for execution: plan %s failed integrity check", p.PlanID)
	}

	p.Status = domain.PlanStatusExecuting
	return p, p.Steps, nil
}

// MarkCompleted transitions an EXECUTING plan to its terminal state:
// COMPLETED on success, FAILED otherwise.
func MarkCompleted(p domain.ExecutionPlan, success bool) domain.ExecutionPlan {
	if success {
		p.Status = domain.PlanStatusCompleted
	} else {
		p.Status = domain.PlanStatusFailed
	}
	return p
}

// computeHash is the truncated SHA-256 of a canonical representation
// of (PlanID, CommandID, Steps), independent of map iteration order.
// Params is folded in key-sorted so every step field — not just
// Index/Intent/Target/Location — is covered by the integrity check.
func computeHash(p domain.ExecutionPlan) string {
	var b strings.Builder
	b.WriteString(p.PlanID)
	b.WriteByte('|')
	b.WriteString(p.CommandID)
	for _, step := range p.Steps {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(step.Index))
		b.WriteByte(':')
		b.WriteString(string(step.Intent))
		b.WriteByte(':')
		b.WriteString(step.Target)
		b.WriteByte(':')
		b.WriteString(step.Location)
		b.WriteByte(':')
		b.WriteString(canonicalParams(step.Params))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// canonicalParams renders a step's Params map deterministically by
// sorting keys, so map iteration order never affects the hash.
func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
