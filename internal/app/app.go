// Package app is the composition root: it wires every component
// (C1–C14) into one Application and manages their lifecycle in
// deterministic order, grounded on the teacher's internal/app
// application.go — a single builder function plus an Attach/Start/Stop
// surface in front of a system.Manager.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/infrastructure/ratelimit"
	core "github.com/deskagent/agent/internal/app/core/service"
	"github.com/deskagent/agent/internal/app/system"
	"github.com/deskagent/agent/internal/decision"
	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/graph"
	"github.com/deskagent/agent/internal/httpapi"
	"github.com/deskagent/agent/internal/launch"
	"github.com/deskagent/agent/internal/learning"
	"github.com/deskagent/agent/internal/llm/supervisor"
	"github.com/deskagent/agent/internal/observability"
	"github.com/deskagent/agent/internal/pipeline"
	"github.com/deskagent/agent/internal/platform/config"
	"github.com/deskagent/agent/internal/platform/database"
	"github.com/deskagent/agent/internal/policy"
	"github.com/deskagent/agent/internal/registry"
	"github.com/deskagent/agent/internal/rollback"
	"github.com/deskagent/agent/internal/schedule"
	"github.com/deskagent/agent/internal/statemachine"
	"github.com/deskagent/agent/internal/watch"
	"github.com/deskagent/agent/internal/worldmodel"
)

// registryCapacity bounds the in-memory command registry (§4.1): old
// entries evict once the agent has handled this many commands.
const registryCapacity = 1000

// Application ties every component together behind one lifecycle.
// Callers only ever touch Start/Stop; the fields below exist so a CLI
// subcommand (e.g. "deskagent submit") can reach a component directly
// without redoing the wiring.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Config   *config.Config
	Registry *registry.Registry
	Pipeline *pipeline.Pipeline
	Machine  *statemachine.Machine
	Policy   *policy.Engine
	Rollback *rollback.Engine
	Watch    *watch.Manager
	Schedule *schedule.Store
	HTTP     *httpapi.Service
	LLM      *supervisor.Supervisor
}

// New builds a fully wired Application from cfg. log may be nil.
func New(cfg *config.Config, log *logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if log == nil {
		log = logging.New("deskagent", cfg.Logging.Level, cfg.Logging.Format)
	}
	observability.Init()

	manager := system.NewManager()

	learningDB, err := database.Open(context.Background(), cfg.Database.LearningDBPath(), cfg.Database.MigrateOnStart)
	if err != nil {
		return nil, fmt.Errorf("open learning store: %w", err)
	}
	jarvisDB, err := database.Open(context.Background(), cfg.Database.JarvisDBPath(), cfg.Database.MigrateOnStart)
	if err != nil {
		return nil, fmt.Errorf("open scheduler/registry store: %w", err)
	}

	world := worldmodel.New()
	learningStore := learning.New(learningDB)
	decisionEngine := decision.New(world, learningStore, cfg.Agent.Language)

	auditPath := filepath.Join(cfg.Database.DataDir, "security_audit.log")
	audit, err := policy.NewAuditLogger(auditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	policyEngine := policy.New(audit)
	policyEngine.SetProfile(policy.Profile(cfg.Agent.Profile))

	rollbackEngine, err := rollback.New(cfg.Database.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open rollback engine: %w", err)
	}

	cmdRegistry := registry.New(registryCapacity)
	machine := statemachine.New(log.Logger)

	limiterCfg := ratelimit.PipelineConfig()
	if cfg.Agent.PipelineRatePerMin > 0 {
		limiterCfg.RequestsPerSecond = float64(cfg.Agent.PipelineRatePerMin) / 60.0
		limiterCfg.Burst = cfg.Agent.PipelineRatePerMin
		limiterCfg.Window = 60 * time.Second
	}
	limiter := ratelimit.New(limiterCfg)

	llmSupervisor := supervisor.New(supervisor.Config{
		LLM:        cfg.LLM,
		WorkerPath: cfg.LLM.WorkerPath,
		WorkerArgs: cfg.LLM.WorkerArgs,
	}, log.Logger)

	pl := pipeline.New(pipeline.Config{
		Registry: cmdRegistry,
		Decision: decisionEngine,
		Policy:   policyEngine,
		Learning: learningStore,
		Rollback: rollbackEngine,
		Machine:  machine,
		Limiter:  limiter,
		LLM:      llmSupervisor,
		Log:      log,
		Language: cfg.Agent.Language,
	})

	scheduleStore := schedule.New(jarvisDB)

	// watch.Manager and schedule.Loop both notify through httpapi's
	// websocket hub, but httpapi.Deps needs the Watch Manager at
	// construction time — a deferredNotifier breaks the cycle by
	// forwarding to whichever Notifier is set once httpSvc exists.
	notifier := &deferredNotifier{}
	watchManager := watch.New(pl, notifier, log.Logger)

	// Pipeline was built before watchManager/scheduleStore could exist
	// (both need pl as their own Dispatcher), so the graph actions that
	// lean on them are wired in after the fact via SetAction rather
	// than at pipeline.New time.
	launcher := launch.New()
	pl.SetAction(domain.IntentWatch, graph.Watch{Controller: watchManager})
	pl.SetAction(domain.IntentStopWatch, graph.StopWatch{Controller: watchManager})
	pl.SetAction(domain.IntentSchedule, graph.Schedule{Scheduler: scheduleStore})
	pl.SetAction(domain.IntentReminder, graph.Reminder{Scheduler: scheduleStore})
	pl.SetAction(domain.IntentOpen, graph.Open{Launcher: launcher})
	pl.SetAction(domain.IntentOpenFile, graph.OpenFile{Launcher: launcher})
	pl.SetAction(domain.IntentMacro, graph.Macro{Launcher: launcher})

	httpSvc := httpapi.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), httpapi.Deps{
		Pipeline: pl,
		Registry: cmdRegistry,
		Machine:  machine,
		Policy:   policyEngine,
		Rollback: rollbackEngine,
		Watch:    watchManager,
		Schedule: scheduleStore,
	}, log)
	notifier.target = httpSvc

	scheduleLoop := schedule.NewLoop(scheduleStore, pl, notifier, 0, log.Logger)
	retention := rollback.NewRetentionSweeper(rollbackEngine, cfg.Agent.TrashRetentionHours, time.Hour, log.Logger)

	services := []system.Service{
		httpSvc,
		newFuncService("scheduler", scheduleLoop.Start, scheduleLoop.Stop),
		newFuncService("trash-retention", retention.Start, retention.Stop),
		newFuncService("llm-supervisor", llmSupervisor.Start, llmSupervisor.Stop),
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Config:   cfg,
		Registry: cmdRegistry,
		Pipeline: pl,
		Machine:  machine,
		Policy:   policyEngine,
		Rollback: rollbackEngine,
		Watch:    watchManager,
		Schedule: scheduleStore,
		HTTP:     httpSvc,
		LLM:      llmSupervisor,
	}, nil
}

// deferredNotifier forwards to target once it's set, letting watch.New
// and schedule.NewLoop receive a Notifier before httpapi.Service (the
// concrete Notifier) exists.
type deferredNotifier struct {
	target interface {
		Notify(id, message string)
	}
}

func (n *deferredNotifier) Notify(id, message string) {
	if n.target != nil {
		n.target.Notify(id, message)
	}
}

// funcService adapts a Start(ctx)/Stop() pair — the shape shared by
// schedule.Loop, rollback.RetentionSweeper, and supervisor.Supervisor —
// to system.Service, since none of them returns an error from Start or
// takes a context in Stop.
type funcService struct {
	name  string
	start func(ctx context.Context)
	stop  func()
}

func newFuncService(name string, start func(ctx context.Context), stop func()) *funcService {
	return &funcService{name: name, start: start, stop: stop}
}

func (f *funcService) Name() string { return f.name }

func (f *funcService) Start(ctx context.Context) error {
	f.start(ctx)
	return nil
}

func (f *funcService) Stop(context.Context) error {
	f.stop()
	return nil
}

// Attach registers an additional lifecycle-managed service. Call
// before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins every registered service in order.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops every registered service in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors returns advertised service descriptors for CLI
// introspection.
func (a *Application) Descriptors() []core.Descriptor {
	return a.manager.Descriptors()
}
