package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/schedule"
	"github.com/deskagent/agent/internal/worldmodel"
)

// WatchController is the subset of the Watcher Subsystem (C12) a Watch
// or StopWatch node needs to act on. Defined here rather than depended
// on, so internal/watch doesn't have to import internal/graph —
// *watch.Manager satisfies this structurally.
type WatchController interface {
	StartWatch(ctx context.Context, folder, filterKey, actionType string, onChange *domain.Command) (domain.WatchTask, error)
	StopWatch(watchID string) bool
}

// Watch registers a REACTIVE node's folder with the Watcher Subsystem
// when a `watch` command reaches execution (§4.12): this is what makes
// a natural-language "راقب مجلد التنزيلات" actually establish an
// observer rather than complete as a no-op.
type Watch struct {
	Controller WatchController
}

func (w Watch) Execute(ctx context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	folder := watchFolder(node)
	if folder == "" {
		return Result{}, fmt.Errorf("watch: no folder resolved")
	}

	var onChange *domain.Command
	if raw := node.Params["on_change"]; raw != "" {
		var cmd domain.Command
		if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
			return Result{}, fmt.Errorf("watch: decode on_change: %w", err)
		}
		onChange = &cmd
	}

	task, err := w.Controller.StartWatch(ctx, folder, node.Params["filter_key"], node.Params["action_type"], onChange)
	if err != nil {
		return Result{}, fmt.Errorf("watch %s: %w", folder, err)
	}
	// Not registered with the Rollback Engine: stopping a watch isn't
	// a rollback_type the Rollback Engine models (§4.10 lists only
	// filesystem reversals), and StopWatch is independently reachable
	// via the `stop_watch` intent.
	return Result{Outputs: map[string]string{"watch_id": task.WatchID, "path": task.ResolvedPath}}, nil
}

// watchFolder resolves the folder a Watch or Clean node targets: an
// explicit target (alias or literal path) takes priority over the
// Planner's already-resolved location, since the latter only ever
// carries the World Model's per-intent default.
func watchFolder(node *domain.ExecutionNode) string {
	if target := node.Params["target"]; target != "" {
		return worldmodel.ResolveLocation(target)
	}
	return node.Params["location"]
}

// StopWatch unschedules the watcher named by the command's watch_id
// (§4.12's stop_watch).
type StopWatch struct {
	Controller WatchController
}

func (s StopWatch) Execute(_ context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	id := node.Params["watch_id"]
	if id == "" {
		return Result{}, fmt.Errorf("stop_watch: no watch_id given")
	}
	if !s.Controller.StopWatch(id) {
		return Result{}, fmt.Errorf("stop_watch: no active watch %s", id)
	}
	return Result{Outputs: map[string]string{"watch_id": id}}, nil
}

// TaskScheduler is the subset of the Scheduler (C13) a Schedule or
// Reminder node needs to durably register a future re-entry.
// *schedule.Store satisfies this structurally.
type TaskScheduler interface {
	AddTask(ctx context.Context, in schedule.AddTaskInput) (domain.ScheduledTask, error)
}

// reminderTaskName is the CommandName the Scheduler's Loop (§4.13)
// recognises as a notification rather than a pipeline re-entry.
const reminderTaskName = "reminder"

// Reminder places a one-shot notification on the Scheduler's clock
// (§4.13 scenario 5): the node's target/param carries the reminder
// text, and time/delay/clock resolution falls back to the bilingual
// natural-language parser when the model didn't already structure it.
type Reminder struct {
	Scheduler TaskScheduler
}

func (r Reminder) Execute(ctx context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	message := node.Params["param"]
	if message == "" {
		message = node.Params["target"]
	}
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return Result{}, fmt.Errorf("reminder: encode payload: %w", err)
	}

	in := resolveScheduleInput(node, reminderTaskName, string(payload), domain.RepeatOnce)
	task, err := r.Scheduler.AddTask(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("reminder: %w", err)
	}
	return Result{Outputs: map[string]string{"schedule_id": task.ID}}, nil
}

// Schedule places a durable, possibly-recurring re-entry of the
// node's on_change command on the Scheduler's clock (§4.13): `schedule`
// is the generic form behind the single-shot `reminder` convenience.
type Schedule struct {
	Scheduler TaskScheduler
}

func (s Schedule) Execute(ctx context.Context, _ string, node *domain.ExecutionNode, _ map[string]string, _ Trasher) (Result, error) {
	raw := node.Params["on_change"]
	if raw == "" {
		return Result{}, fmt.Errorf("schedule: no on_change command to re-enter")
	}

	repeat := domain.RepeatInterval(node.Params["repeat"])
	if repeat == "" {
		repeat = domain.RepeatOnce
	}

	in := resolveScheduleInput(node, node.Params["action_type"], raw, repeat)
	task, err := s.Scheduler.AddTask(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("schedule: %w", err)
	}
	return Result{Outputs: map[string]string{"schedule_id": task.ID}}, nil
}

// resolveScheduleInput builds an AddTaskInput from a node's time/delay
// fields, falling back to schedule.BuildAddTaskInput's natural-language
// parse over whatever text the model put in target/param when it
// didn't structure a delay or clock itself.
func resolveScheduleInput(node *domain.ExecutionNode, commandName, commandData string, repeat domain.RepeatInterval) schedule.AddTaskInput {
	if delay, err := strconv.Atoi(node.Params["delay"]); err == nil && delay > 0 {
		return schedule.AddTaskInput{CommandName: commandName, CommandData: commandData, Repeat: repeat, DelaySeconds: delay}
	}
	if clock := node.Params["time"]; clock != "" {
		return schedule.AddTaskInput{CommandName: commandName, CommandData: commandData, Repeat: repeat, Clock: clock}
	}

	raw := node.Params["param"]
	if raw == "" {
		raw = node.Params["target"]
	}
	return schedule.BuildAddTaskInput(raw, commandName, commandData, repeat)
}
