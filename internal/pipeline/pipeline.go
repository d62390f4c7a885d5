// Package pipeline wires every other component into the single entry
// point the spec's data-flow sentence describes: User → C14 → C2/C3/
// C4/C5 → C7 → C6 → C8 → C9 (with C10) → C11 → C1, with watcher and
// scheduler events re-entering at C5 instead of C14 since they already
// carry a parsed domain.Command. internal/httpapi, internal/watch, and
// internal/schedule all drive the agent through this one package
// rather than touching the component packages directly.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/infrastructure/ratelimit"
	"github.com/deskagent/agent/internal/decision"
	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/graph"
	"github.com/deskagent/agent/internal/learning"
	"github.com/deskagent/agent/internal/llm/ipc"
	"github.com/deskagent/agent/internal/observability"
	"github.com/deskagent/agent/internal/plan"
	"github.com/deskagent/agent/internal/policy"
	"github.com/deskagent/agent/internal/registry"
	"github.com/deskagent/agent/internal/rollback"
	"github.com/deskagent/agent/internal/statemachine"
	"github.com/deskagent/agent/pkg/agenterrors"
)

// LLMCaller is the subset of *supervisor.Supervisor the pipeline needs
// to turn raw text into a parsed command. Defined here rather than
// depended on so pipeline never imports internal/llm/supervisor
// directly — the composition root supplies the concrete type.
type LLMCaller interface {
	Call(ctx context.Context, prompt string, appContext map[string]string) (ipc.Response, error)
}

// Outcome is what Submit/Dispatch returns: the registry id, the final
// execution status, and — when the Decision Engine couldn't proceed
// without more information — the clarification to relay back to the
// caller instead of an execution status.
type Outcome struct {
	CommandID     string
	Status        domain.ExecutionStatus
	Clarification *decision.Clarification
}

// Pipeline holds every component C1–C11 plus the LLM caller needed to
// parse raw text at the front door (§2).
type Pipeline struct {
	registry   *registry.Registry
	decision   *decision.Engine
	policy     *policy.Engine
	learning   *learning.Store
	rollback   *rollback.Engine
	machine    *statemachine.Machine
	limiter    *ratelimit.RateLimiter
	llm        LLMCaller
	actions    map[domain.Intent]graph.Action
	log        *logging.Logger
	language   string
	metrics    *observability.Metrics
}

// Config collects every dependency Pipeline needs. Actions may be nil
// to use graph.ForIntent's defaults; a composition root only overrides
// it to inject test doubles.
type Config struct {
	Registry *registry.Registry
	Decision *decision.Engine
	Policy   *policy.Engine
	Learning *learning.Store
	Rollback *rollback.Engine
	Machine  *statemachine.Machine
	Limiter  *ratelimit.RateLimiter
	LLM      LLMCaller
	Actions  map[domain.Intent]graph.Action
	Log      *logging.Logger
	Language string
	Metrics  *observability.Metrics
}

// SetAction registers (or replaces) the Action used for intent. The
// composition root calls this for the subsystem-backed actions (watch,
// schedule, open) once their subsystems exist — which happens after
// Pipeline itself, since the Watcher Subsystem and Scheduler both take
// the Pipeline as their own Dispatcher (§4.12, §4.13).
func (p *Pipeline) SetAction(intent domain.Intent, action graph.Action) {
	if p.actions == nil {
		p.actions = make(map[domain.Intent]graph.Action)
	}
	p.actions[intent] = action
}

// New assembles a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	if cfg.Log == nil {
		cfg.Log = logging.NewFromEnv("pipeline")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.Global()
	}
	return &Pipeline{
		registry: cfg.Registry,
		decision: cfg.Decision,
		policy:   cfg.Policy,
		learning: cfg.Learning,
		rollback: cfg.Rollback,
		machine:  cfg.Machine,
		limiter:  cfg.Limiter,
		llm:      cfg.LLM,
		actions:  cfg.Actions,
		log:      cfg.Log,
		language: cfg.Language,
		metrics:  cfg.Metrics,
	}
}

// Submit is the front door for raw user text (§4.14 → §4.2..§4.5): it
// rate-limits, calls the LLM worker to turn text into a domain.Command,
// then hands off to the shared dispatch path. source identifies where
// the raw text came from (e.g. "gui", "voice") for logging and the
// pipeline metrics' source label.
func (p *Pipeline) Submit(ctx context.Context, raw string, source string) (Outcome, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Outcome{}, agenterrors.RateLimitExceeded(10, "60s")
		}
	}

	cmd, err := p.parse(ctx, raw)
	if err != nil {
		return Outcome{}, err
	}

	cmdID := p.registry.Register(raw, cmd.Intent)
	ctx = logging.WithCommandIDContext(ctx, cmdID)
	p.log.Info(ctx, "command submitted", map[string]interface{}{"source": source, "intent": string(cmd.Intent)})

	start := time.Now()
	outcome, err := p.dispatch(ctx, cmdID, cmd)
	p.metrics.RecordPipeline(source, string(cmd.Intent), pipelineOutcome(outcome, err), time.Since(start))
	return outcome, err
}

// Dispatch re-enters the pipeline at the Decision Engine for a command
// already built by the Watcher Subsystem (on_change) or the Scheduler
// (a due recurring task), skipping the LLM parse step. It satisfies
// both watch.Dispatcher and schedule.Dispatcher structurally.
func (p *Pipeline) Dispatch(ctx context.Context, cmd domain.Command) error {
	cmdID := p.registry.Register(fmt.Sprintf("<re-entry:%s>", cmd.Intent), cmd.Intent)
	ctx = logging.WithCommandIDContext(ctx, cmdID)
	start := time.Now()
	outcome, err := p.dispatch(ctx, cmdID, cmd)
	p.metrics.RecordPipeline("re-entry", string(cmd.Intent), pipelineOutcome(outcome, err), time.Since(start))
	return err
}

// pipelineOutcome labels a dispatch result for the pipeline duration
// histogram's outcome dimension.
func pipelineOutcome(outcome Outcome, err error) string {
	switch {
	case err != nil:
		return "error"
	case outcome.Clarification != nil:
		return "ask"
	default:
		return "completed"
	}
}

// parse sends raw to the LLM worker and decodes its response into a
// domain.Command, falling back to balanced-brace extraction out of the
// raw model text when the worker didn't already return valid JSON
// (§4.14).
func (p *Pipeline) parse(ctx context.Context, raw string) (domain.Command, error) {
	if p.llm == nil {
		return domain.Command{}, agenterrors.IPCUnavailableError(fmt.Errorf("no llm caller configured"))
	}

	resp, err := p.llm.Call(ctx, raw, nil)
	if err != nil {
		return domain.Command{}, agenterrors.IPCUnavailableError(err)
	}
	if !resp.Success {
		return domain.Command{}, agenterrors.ParseError(resp.RawText, fmt.Errorf("%s", resp.Error))
	}

	payload := resp.Response
	if len(payload) == 0 {
		extracted, ok := ipc.ExtractJSON(resp.RawText)
		if !ok {
			return domain.Command{}, agenterrors.ParseError(resp.RawText, fmt.Errorf("no JSON object found in model output"))
		}
		payload = extracted
	}

	var cmd domain.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return domain.Command{}, agenterrors.ParseError(string(payload), err)
	}
	if !cmd.Intent.Valid() {
		cmd.Intent = domain.IntentUnknown
	}
	return cmd, nil
}

// dispatch runs the shared C2–C11/C1 chain for a parsed command.
func (p *Pipeline) dispatch(ctx context.Context, cmdID string, cmd domain.Command) (Outcome, error) {
	status := p.machine.Init(cmdID)
	_ = p.machine.Transition(cmdID, domain.StateParsing, "decision engine", "", nil)

	outcome, err := p.decision.Decide(ctx, cmd)
	if err != nil {
		p.fail(ctx, cmdID, err)
		return Outcome{}, err
	}
	p.metrics.DecisionAction.WithLabelValues(string(outcome.Action), string(outcome.Score.Level)).Inc()

	if outcome.Action == decision.ActionAsk {
		p.registry.UpdateStatus(cmdID, domain.CommandStatusPending, "", "")
		return Outcome{CommandID: cmdID, Status: status, Clarification: outcome.Clarification}, nil
	}

	p.registry.UpdateStatus(cmdID, domain.CommandStatusProcessing, "", "")
	_ = p.machine.Transition(cmdID, domain.StatePolicyCheck, "policy gate", "", nil)
	commands := []domain.Command{outcome.Command}
	for step := outcome.Command.OnChange; step != nil; step = step.OnChange {
		commands = append(commands, *step)
	}

	for _, step := range commands {
		gate := p.policy.Evaluate(cmdID, step)
		p.metrics.PolicyDecisions.WithLabelValues(string(step.Intent), fmt.Sprintf("%t", gate.Allowed)).Inc()
		if !gate.Allowed {
			_ = p.machine.Transition(cmdID, domain.StatePolicyBlocked, gate.Reason, "", nil)
			p.registry.UpdateStatus(cmdID, domain.CommandStatusFailed, "", gate.Reason)
			return Outcome{CommandID: cmdID, Status: p.statusOrZero(cmdID)}, agenterrors.PolicyError(string(step.Intent), gate.Reason)
		}
	}

	built := plan.CreatePlan(cmdID, commands)
	validated, err := plan.Validate(built)
	if err != nil {
		p.fail(ctx, cmdID, agenterrors.ValidationError("plan", err.Error()))
		return Outcome{}, err
	}
	frozen, err := plan.Freeze(validated)
	if err != nil {
		p.fail(ctx, cmdID, agenterrors.IntegrityError(frozen.PlanID))
		return Outcome{}, err
	}

	_ = p.machine.Transition(cmdID, domain.StateGraphBuilt, "graph built", "", nil)
	g := graph.Build(frozen)
	if notes := graph.Repair(ctx, g, p.learning); len(notes) > 0 {
		p.log.Info(ctx, "graph auto-repaired", map[string]interface{}{"notes": notes})
	}
	if err := graph.Validate(g); err != nil {
		p.fail(ctx, cmdID, agenterrors.RuleViolationError("graph", err.Error()))
		return Outcome{}, err
	}

	executing, _, err := plan.PrepareForExecution(frozen)
	if err != nil {
		p.fail(ctx, cmdID, agenterrors.IntegrityError(executing.PlanID))
		return Outcome{}, err
	}

	runner := graph.New(p.rollback)
	runner.Subscribe(func(node *domain.ExecutionNode) {
		if node.Status == domain.NodeStatusRunning {
			_ = p.machine.Transition(cmdID, domain.StateNodeRunning, string(node.Intent), node.ID, nil)
		}
		if node.Status == domain.NodeStatusDone || node.Status == domain.NodeStatusFailed {
			p.metrics.RecordNode(string(node.Intent), string(node.Status), time.Duration(node.DurationMS)*time.Millisecond)
		}
	})

	_ = p.machine.Transition(cmdID, domain.StateNodeRunning, "execution started", "", nil)
	result := runner.Run(ctx, g, p.actions)

	if !result.Success {
		p.log.LogNodeExecution(ctx, result.FailedNode, "", 0, fmt.Errorf("%s", result.Error))
		_ = p.machine.SetError(cmdID, result.Error)
		if p.rollback != nil && p.rollback.HasRollback(cmdID) {
			_ = p.machine.Transition(cmdID, domain.StateRollingBack, "rolling back", "", nil)
			rbResult := p.rollback.Rollback(ctx, cmdID)
			p.log.LogRollback(ctx, rbResult.RolledBackCount, rbResult.FailedCount, firstErr(rbResult.Errors))
			p.metrics.RecordRollback(rbResult.FailedCount == 0)
			_ = p.machine.MarkRolledBack(cmdID)
			p.registry.UpdateStatus(cmdID, domain.CommandStatusRolledBack, "", result.Error)
		} else {
			p.registry.UpdateStatus(cmdID, domain.CommandStatusFailed, "", result.Error)
		}
		return Outcome{CommandID: cmdID, Status: p.statusOrZero(cmdID)}, agenterrors.NodeExecutionError(result.FailedNode, "", fmt.Errorf("%s", result.Error))
	}

	_ = p.machine.Transition(cmdID, domain.StateCompleted, "completed", "", nil)
	p.registry.SetRollbackAvailable(cmdID, p.rollback != nil && p.rollback.HasRollback(cmdID))
	p.registry.UpdateStatus(cmdID, domain.CommandStatusCompleted, "ok", "")

	return Outcome{CommandID: cmdID, Status: p.statusOrZero(cmdID)}, nil
}

func (p *Pipeline) fail(ctx context.Context, cmdID string, err error) {
	p.log.Error(ctx, "pipeline failed", err, nil)
	_ = p.machine.SetError(cmdID, err.Error())
	p.registry.UpdateStatus(cmdID, domain.CommandStatusFailed, "", err.Error())
}

func (p *Pipeline) statusOrZero(cmdID string) domain.ExecutionStatus {
	status, _ := p.machine.Get(cmdID)
	return status
}

func firstErr(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", msgs[0])
}
