// Package policy implements the Policy Engine (§4.6): per-intent risk
// policies, profile-aware confirmation/dry-run rules, the standalone
// path-safety check, an append-only security audit log, and an input
// sanitizer that flags prompt-injection-like text.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/worldmodel"
)

// RiskLevel orders how dangerous an intent's effects are.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Profile is one of the three execution profiles (§6).
type Profile string

const (
	ProfileSafe   Profile = "safe"
	ProfilePower  Profile = "power"
	ProfileSilent Profile = "silent"
)

// Policy is a per-intent risk record.
type Policy struct {
	Intent               domain.Intent
	Risk                 RiskLevel
	RequiresConfirmation bool
	AllowedProfiles      map[Profile]bool
	BlockedPaths         []*regexp.Regexp
	MaxItems             int // -1 = unlimited
}

// Decision is the Policy Engine's verdict for one command.
type Decision struct {
	Allowed         bool
	Reason          string
	RequireConfirm  bool
	ForceDryRun     bool
	Risk            RiskLevel
	Warnings        []string
}

// Engine holds the policy table and current profile. Safe for
// concurrent use.
type Engine struct {
	mu       sync.Mutex
	policies map[domain.Intent]Policy
	profile  Profile
	audit    *AuditLogger
}

func allProfiles() map[Profile]bool {
	return map[Profile]bool{ProfileSafe: true, ProfilePower: true, ProfileSilent: true}
}

// New returns an Engine loaded with the default per-intent policies
// (§4.6), starting in the "power" profile, logging decisions and
// threats to audit.
func New(audit *AuditLogger) *Engine {
	e := &Engine{policies: make(map[domain.Intent]Policy), profile: ProfilePower, audit: audit}
	for _, p := range defaultPolicies() {
		e.policies[p.Intent] = p
	}
	return e
}

func defaultPolicies() []Policy {
	return []Policy{
		{Intent: domain.IntentOpen, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentOpenFile, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentCreateFolder, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentCreateFile, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentWriteFile, Risk: RiskMedium, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentDelete, Risk: RiskHigh, RequiresConfirmation: true, AllowedProfiles: map[Profile]bool{ProfilePower: true, ProfileSilent: true}, MaxItems: -1},
		{Intent: domain.IntentRename, Risk: RiskMedium, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentMove, Risk: RiskMedium, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentCopy, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentMacro, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentWatch, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentStopWatch, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentSchedule, Risk: RiskMedium, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentReminder, Risk: RiskLow, AllowedProfiles: allProfiles(), MaxItems: -1},
		{Intent: domain.IntentClean, Risk: RiskMedium, AllowedProfiles: allProfiles(), MaxItems: -1},
	}
}

// SetProfile changes the active profile, logging the change, if it is
// one of the three recognised profiles.
func (e *Engine) SetProfile(profile Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if profile != ProfileSafe && profile != ProfilePower && profile != ProfileSilent {
		return
	}
	old := e.profile
	e.profile = profile
	if e.audit != nil && old != profile {
		e.audit.LogProfileChange(string(old), string(profile))
	}
}

// AddPolicy installs or replaces the policy for its intent.
func (e *Engine) AddPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.Intent] = p
}

// GetPolicy returns the policy for intent, if any.
func (e *Engine) GetPolicy(intent domain.Intent) (Policy, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.policies[intent]
	return p, ok
}

// Evaluate decides whether cmdID/cmd may proceed, in order: path
// safety, always-blocked paths, policy-specific blocked paths, profile
// membership, then confirmation/dry-run rules (§4.6). The first
// failure returns a blocking Decision.
func (e *Engine) Evaluate(cmdID string, cmd domain.Command) Decision {
	e.mu.Lock()
	policy, ok := e.policies[cmd.Intent]
	profile := e.profile
	e.mu.Unlock()

	if !ok {
		decision := Decision{
			Allowed:  true,
			Reason:   "unknown intent, proceeding with caution",
			Risk:     RiskMedium,
			Warnings: []string{"intent not in policy database"},
		}
		e.logDecision(cmdID, cmd.Intent, decision)
		return decision
	}

	fullPath := resolvePath(cmd.Target, cmd.Loc)

	if check := CheckPath(fullPath); !check.Safe {
		if e.audit != nil {
			e.audit.LogThreat(string(check.Threat), fullPath, true)
		}
		decision := Decision{Allowed: false, Reason: check.Message, Risk: RiskCritical}
		e.logDecision(cmdID, cmd.Intent, decision)
		return decision
	}

	for _, blocked := range policy.BlockedPaths {
		if blocked.MatchString(fullPath) {
			decision := Decision{Allowed: false, Reason: fmt.Sprintf("path blocked by policy: %s", blocked.String()), Risk: RiskHigh}
			e.logDecision(cmdID, cmd.Intent, decision)
			return decision
		}
	}

	if !policy.AllowedProfiles[profile] {
		decision := Decision{Allowed: false, Reason: fmt.Sprintf("not allowed in %s profile", profile), Risk: policy.Risk}
		e.logDecision(cmdID, cmd.Intent, decision)
		return decision
	}

	requireConfirm := policy.RequiresConfirmation
	forceDryRun := false
	switch profile {
	case ProfileSafe:
		requireConfirm = true
		if policy.Risk >= RiskMedium {
			forceDryRun = true
		}
	case ProfileSilent:
		requireConfirm = false
	}

	var warnings []string
	if policy.Risk >= RiskHigh {
		warnings = append(warnings, fmt.Sprintf("high-risk operation: %s", cmd.Intent))
	}

	decision := Decision{
		Allowed:        true,
		Reason:         "allowed",
		RequireConfirm: requireConfirm,
		ForceDryRun:    forceDryRun,
		Risk:           policy.Risk,
		Warnings:       warnings,
	}
	e.logDecision(cmdID, cmd.Intent, decision)
	return decision
}

func (e *Engine) logDecision(cmdID string, intent domain.Intent, decision Decision) {
	if e.audit == nil {
		return
	}
	e.audit.LogPolicyDecision(cmdID, string(intent), decision.Allowed, decision.Reason)
}

// resolvePath turns a command's target/loc pair into the full path
// the safety checks run against, reusing the World Model's location
// alias resolution (§4.6's "_resolve_path").
func resolvePath(target, loc string) string {
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "/") || strings.Contains(target, ":\\") {
		return target
	}
	base := worldmodel.ResolveLocation(loc)
	if base == "" {
		return target
	}
	return base + string('/') + target
}

// FormatDecision renders a decision for display.
func FormatDecision(d Decision) string {
	var b strings.Builder
	if d.Allowed {
		fmt.Fprintf(&b, "allowed: %s", d.Reason)
	} else {
		fmt.Fprintf(&b, "blocked: %s", d.Reason)
	}
	if d.RequireConfirm {
		b.WriteString("\n  requires confirmation")
	}
	if d.ForceDryRun {
		b.WriteString("\n  dry run first")
	}
	for _, w := range d.Warnings {
		b.WriteString("\n  " + w)
	}
	return b.String()
}
