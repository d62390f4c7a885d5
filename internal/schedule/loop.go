package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/observability"
)

// defaultPollInterval is how often the background loop wakes to check
// for due tasks (§4.13: "wakes every ~5 s").
const defaultPollInterval = 5 * time.Second

// reminderCommand is the sentinel CommandName that fires a Notifier
// call instead of re-entering the pipeline (§4.13).
const reminderCommand = "reminder"

// Dispatcher re-enters a due ScheduledTask's command at the Decision
// Engine (C5), so a scheduled re-entry is policy-gated exactly like
// user input. Defined here rather than depended on, so the
// composition root wires a concrete implementation rather than
// internal/schedule depending on internal/decision.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
}

// Notifier surfaces a fired reminder to the UI.
type Notifier interface {
	Notify(taskID, message string)
}

// reminderPayload is the CommandData shape for a reminder task.
type reminderPayload struct {
	Message string `json:"message"`
}

// repeatCronSpec maps a recurring RepeatInterval to the standard cron
// spec robfig/cron resolves it with. Using a real cron.Schedule rather
// than domain.RepeatInterval.Period()'s plain duration math means
// "daily"/"weekly" advance to the next calendar boundary (the next
// midnight, and for weekly the next Sunday midnight) instead of drifting by exactly 24h/168h from
// whenever the task happened to fire.
var repeatCronSpec = map[domain.RepeatInterval]string{
	domain.RepeatHourly: "@hourly",
	domain.RepeatDaily:  "@daily",
	domain.RepeatWeekly: "@weekly",
}

func nextRunAt(repeat domain.RepeatInterval, from time.Time) (time.Time, error) {
	spec, ok := repeatCronSpec[repeat]
	if !ok {
		return time.Time{}, fmt.Errorf("schedule: %q does not repeat", repeat)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parse %q: %w", spec, err)
	}
	return schedule.Next(from), nil
}

// Loop polls Store for due tasks and fires each one exactly once per
// arrival: a reminder notifies, anything else re-enters the pipeline
// through Dispatcher. Once tasks are marked done; hourly/daily/weekly
// tasks are advanced to their next occurrence and stay pending.
type Loop struct {
	store    *Store
	dispatch Dispatcher
	notify   Notifier
	interval time.Duration
	log      *logrus.Logger
	metrics  *observability.Metrics

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewLoop wires a background poller against store. dispatch and
// notify may be nil in tests; a real composition root supplies both.
// interval <= 0 defaults to defaultPollInterval; log may be nil.
func NewLoop(store *Store, dispatch Dispatcher, notify Notifier, interval time.Duration, log *logrus.Logger) *Loop {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = logrus.New()
	}
	return &Loop{
		store:    store,
		dispatch: dispatch,
		notify:   notify,
		interval: interval,
		log:      log,
		metrics:  observability.Global(),
		stop:     make(chan struct{}),
	}
}

// Start runs the poll loop in a background goroutine until ctx is
// cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-ticker.C:
				l.Tick(ctx)
			}
		}
	}()
}

// Stop halts the poll loop and waits for it to exit.
func (l *Loop) Stop() {
	close(l.stop)
	l.wg.Wait()
}

// Tick processes every currently due task once. Exported so tests (and
// a manual "run the scheduler now" trigger) don't have to wait on the
// ticker.
func (l *Loop) Tick(ctx context.Context) {
	l.metrics.SchedulerTicks.Inc()
	due, err := l.store.dueTasks(ctx, time.Now())
	if err != nil {
		l.log.WithError(err).Error("scheduler: list due tasks")
		return
	}
	for _, task := range due {
		l.fire(ctx, task)
	}
}

func (l *Loop) fire(ctx context.Context, task domain.ScheduledTask) {
	l.metrics.SchedulerFired.WithLabelValues(string(task.Repeat)).Inc()
	if task.CommandName == reminderCommand {
		l.fireReminder(task)
	} else {
		l.fireCommand(ctx, task)
	}

	if task.Repeat == domain.RepeatOnce {
		if err := l.store.complete(ctx, task.ID, time.Now()); err != nil {
			l.log.WithField("task_id", task.ID).WithError(err).Error("scheduler: mark done")
		}
		return
	}

	next, err := nextRunAt(task.Repeat, task.RunAt)
	if err != nil {
		l.log.WithField("task_id", task.ID).WithError(err).Error("scheduler: compute next run")
		return
	}
	if err := l.store.reschedule(ctx, task.ID, next); err != nil {
		l.log.WithField("task_id", task.ID).WithError(err).Error("scheduler: reschedule")
	}
}

func (l *Loop) fireReminder(task domain.ScheduledTask) {
	var payload reminderPayload
	if err := json.Unmarshal([]byte(task.CommandData), &payload); err != nil {
		l.log.WithField("task_id", task.ID).WithError(err).Error("scheduler: decode reminder payload")
		return
	}
	if l.notify != nil {
		l.notify.Notify(task.ID, payload.Message)
	}
}

func (l *Loop) fireCommand(ctx context.Context, task domain.ScheduledTask) {
	var cmd domain.Command
	if err := json.Unmarshal([]byte(task.CommandData), &cmd); err != nil {
		l.log.WithField("task_id", task.ID).WithError(err).Error("scheduler: decode command payload")
		return
	}
	if l.dispatch == nil {
		return
	}
	if err := l.dispatch.Dispatch(ctx, cmd); err != nil {
		l.log.WithField("task_id", task.ID).WithError(err).Error("scheduler: dispatch failed")
	}
}
