// Package decision implements the Decision Engine (§4.5): it
// combines the Learning Store, World Model, and Confidence
// Calculator to decide whether a command executes silently, executes
// with a notification, or needs a clarifying question first.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/deskagent/agent/internal/confidence"
	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/learning"
	"github.com/deskagent/agent/internal/worldmodel"
)

// Action is what the engine decided to do with a command.
type Action string

const (
	ActionExecute Action = "execute"
	ActionAsk     Action = "ask"
)

// Outcome is the engine's decision for one command.
type Outcome struct {
	Command        domain.Command
	Action         Action
	Score          confidence.Score
	Notification   string          // set when Action is execute and the score was MEDIUM
	Clarification  *Clarification  // set when Action is ask
}

// Engine wires the Learning Store and World Model into a single
// decision per command, and tracks the context memory update
// (last_intent/last_location/watch_target) an executed command
// leaves behind for later inheritance.
type Engine struct {
	world    *worldmodel.Model
	learning *learning.Store
	language string
}

// New returns a Decision Engine over world and store, phrasing
// clarifications in language ("en" by default).
func New(world *worldmodel.Model, store *learning.Store, language string) *Engine {
	if language == "" {
		language = "en"
	}
	return &Engine{world: world, learning: store, language: language}
}

// Decide applies the Learning Store, then the World Model, then the
// Confidence Calculator to raw, and returns the resulting action. On
// ActionExecute it updates the engine's World Model context memory so
// later commands can inherit from this one (§4.5).
func (e *Engine) Decide(ctx context.Context, raw domain.Command) (Outcome, error) {
	cmd := raw
	learnedMatch := false

	if e.learning != nil {
		applied, result, err := e.learning.ApplyToCommand(ctx, cmd)
		if err != nil {
			return Outcome{}, fmt.Errorf("apply learning pattern: %w", err)
		}
		if result.Applied {
			cmd = applied
			learnedMatch = true
		}
	}

	cmd = e.world.CompleteCommand(cmd)

	confCtx := confidence.Context{LearnedPattern: learnedMatch}
	score := confidence.Calculate(cmd, confCtx)

	outcome := Outcome{Command: cmd, Score: score}

	switch score.Level {
	case confidence.LevelHigh:
		outcome.Action = ActionExecute
	case confidence.LevelMedium:
		outcome.Action = ActionExecute
		outcome.Notification = buildNotification(cmd, score)
	default:
		outcome.Action = ActionAsk
		clarification := GenerateClarification(string(cmd.Intent), score.Missing, score.Inferred, e.language)
		outcome.Clarification = &clarification
	}

	if outcome.Action == ActionExecute {
		e.world.SetLastAction(cmd.Intent, cmd.Loc)
		if cmd.Intent == domain.IntentWatch {
			e.world.UpdateContext("watch_target", cmd.Loc)
		}
	}

	return outcome, nil
}

func buildNotification(cmd domain.Command, score confidence.Score) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("running %s", cmd.Intent))
	if len(score.Inferred) > 0 {
		parts = append(parts, confidence.Format(score))
	}
	parts = append(parts, "(rollback available)")
	return strings.Join(parts, " ")
}

// ResolveChain decides a sequence of commands that build on one
// another (e.g. an on_change chain), reducing their individual
// confidence scores by averaging and making one combined decision for
// the whole chain (§4.5: resolve_chain).
func (e *Engine) ResolveChain(ctx context.Context, chain []domain.Command) (Outcome, error) {
	if len(chain) == 0 {
		return Outcome{}, fmt.Errorf("resolve chain: empty chain")
	}

	var sum float64
	var last Outcome
	for _, cmd := range chain {
		outcome, err := e.Decide(ctx, cmd)
		if err != nil {
			return Outcome{}, err
		}
		sum += outcome.Score.Value
		last = outcome
	}

	average := sum / float64(len(chain))
	last.Score.Value = average
	switch {
	case average >= 0.75:
		last.Score.Level = confidence.LevelHigh
		last.Action = ActionExecute
		last.Clarification = nil
	case average >= 0.5:
		last.Score.Level = confidence.LevelMedium
		last.Action = ActionExecute
		if last.Notification == "" {
			last.Notification = buildNotification(last.Command, last.Score)
		}
	default:
		last.Score.Level = confidence.LevelLow
		last.Action = ActionAsk
		if last.Clarification == nil {
			clarification := GenerateClarification(string(last.Command.Intent), last.Score.Missing, last.Score.Inferred, e.language)
			last.Clarification = &clarification
		}
	}

	return last, nil
}
