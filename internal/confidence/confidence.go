// Package confidence implements the Confidence Calculator (§4.4): a
// weighted score over how much of a command is explicit, inferred, or
// backed by context, used to decide whether to execute silently,
// execute with a notification, or ask the user.
package confidence

import (
	"fmt"
	"math"
	"strings"

	"github.com/deskagent/agent/internal/domain"
)

// Level buckets a Score into the three response tiers (§4.4).
type Level string

const (
	LevelHigh   Level = "high"   // >= 0.75: execute immediately
	LevelMedium Level = "medium" // [0.5, 0.75): execute + notify
	LevelLow    Level = "low"    // < 0.5: ask
)

// weights mirrors the original system's CONFIDENCE_WEIGHTS table.
const (
	weightIntentExplicit     = 0.20
	weightTargetExplicit     = 0.20
	weightLocationExplicit   = 0.15
	weightHasDefault         = 0.15
	weightContextAvailable   = 0.10
	weightPatternMatch       = 0.10
	weightRollbackAvailable  = 0.10
	inferredFieldWeightScale = 0.5
)

// rollbackSafe are the intents whose effects C10 can always undo,
// earning them a confidence boost (§4.4, §4.10).
var rollbackSafe = map[domain.Intent]bool{
	domain.IntentCreateFolder: true,
	domain.IntentCreateFile:   true,
	domain.IntentWriteFile:    true,
	domain.IntentCopy:         true,
	domain.IntentMove:         true,
	domain.IntentRename:       true,
}

// knownTransitionPatterns are (last intent, current intent) pairs the
// agent has come to expect, each worth a small confidence boost.
var knownTransitionPatterns = map[[2]domain.Intent]bool{
	{domain.IntentWatch, domain.IntentCreateFolder}:  true,
	{domain.IntentWatch, domain.IntentCreateFile}:    true,
	{domain.IntentOpen, domain.IntentWriteFile}:      true,
	{domain.IntentCreateFolder, domain.IntentCreateFile}: true,
}

// Context carries the ambient signals the calculator weighs alongside
// the command itself.
type Context struct {
	LastIntent     domain.Intent
	LastLocation   string
	LearnedPattern bool // a Learning Store pattern resolved this command's blanks
}

// learnedPatternBoost is added to the score when a recalled learning
// pattern filled in the command's blanks (spec §4.4: "A learned-
// pattern match bumps the final score by +0.15 (clamped)").
const learnedPatternBoost = 0.15

// Score is the result of weighing a command's explicitness, inferred
// fields, and context support.
type Score struct {
	Value    float64
	Level    Level
	Factors  map[string]float64
	Missing  []string
	Inferred map[string]string
}

// ShouldExecute reports whether the score clears the ask threshold.
func (s Score) ShouldExecute() bool { return s.Value >= 0.5 }

// ShouldNotify reports whether execution should carry a notification
// rather than proceed silently.
func (s Score) ShouldNotify() bool { return s.Value >= 0.5 && s.Value < 0.75 }

// ShouldAsk reports whether the command is too uncertain to execute
// without clarifying first.
func (s Score) ShouldAsk() bool { return s.Value < 0.5 }

// Calculate weighs cmd's explicit and inferred fields, plus ctx, into
// a Score (§4.4). cmd should already have passed through the World
// Model and Learning Store so MarkInferred reflects every filled-in
// field.
func Calculate(cmd domain.Command, ctx Context) Score {
	factors := make(map[string]float64)
	var missing []string
	inferred := make(map[string]string)

	if cmd.Intent != "" && cmd.Intent != domain.IntentUnknown {
		factors["intent_explicit"] = weightIntentExplicit
	} else {
		missing = append(missing, "intent")
	}

	if present, value := fieldWeight(cmd.Target, cmd.IsFieldExplicit("target"), weightTargetExplicit); present {
		factors["target_explicit"] = value
		if !cmd.IsFieldExplicit("target") {
			inferred["target"] = cmd.Target
		}
	} else {
		missing = append(missing, "target")
	}

	if present, value := fieldWeight(cmd.Loc, cmd.IsFieldExplicit("loc"), weightLocationExplicit); present {
		factors["location_explicit"] = value
		if !cmd.IsFieldExplicit("loc") {
			inferred["loc"] = cmd.Loc
		}
	} else {
		missing = append(missing, "location")
	}

	if len(inferred) > 0 {
		factors["has_default"] = weightHasDefault
	}

	if ctx.LastIntent != "" || ctx.LastLocation != "" {
		factors["context_available"] = weightContextAvailable
	}

	if knownTransitionPatterns[[2]domain.Intent{ctx.LastIntent, cmd.Intent}] {
		factors["pattern_match"] = weightPatternMatch
	}

	if rollbackSafe[cmd.Intent] {
		factors["rollback_available"] = weightRollbackAvailable
	}

	var total float64
	for _, v := range factors {
		total += v
	}
	if ctx.LearnedPattern {
		total += learnedPatternBoost
	}
	total = math.Min(1.0, math.Max(0.0, total))
	total = math.Round(total*100) / 100

	var level Level
	switch {
	case total >= 0.75:
		level = LevelHigh
	case total >= 0.5:
		level = LevelMedium
	default:
		level = LevelLow
	}

	return Score{
		Value:    total,
		Level:    level,
		Factors:  factors,
		Missing:  missing,
		Inferred: inferred,
	}
}

// fieldWeight reports whether value counts as present (non-blank, not
// the literal placeholder "?"), and the weight it earns: full weight
// if explicit, half weight if inferred.
func fieldWeight(value string, explicit bool, weight float64) (bool, float64) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "?" {
		return false, 0
	}
	if explicit {
		return true, weight
	}
	return true, weight * inferredFieldWeightScale
}

// Format renders score as a human-readable summary for a MEDIUM- or
// LOW-confidence notification.
func Format(score Score) string {
	var b strings.Builder
	fmt.Fprintf(&b, "confidence: %.0f%% (%s)", score.Value*100, score.Level)

	for _, field := range []string{"target", "loc"} {
		if value, ok := score.Inferred[field]; ok {
			fmt.Fprintf(&b, "\n  %s: %s (inferred)", field, value)
		}
	}
	if len(score.Missing) > 0 {
		fmt.Fprintf(&b, "\n  missing: %s", strings.Join(score.Missing, ", "))
	}
	return b.String()
}
