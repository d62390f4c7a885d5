// Package schedule implements the Scheduler (C13, §4.13): a durable
// sqlite-backed queue of time-triggered pipeline re-entries and
// reminders, polled by a background loop.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/deskagent/agent/internal/domain"
)

// Store persists ScheduledTask rows in sqlite.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-open sqlite handle (see
// internal/platform/database.Open) for schedule storage.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "sqlite")}
}

// taskRow is the sqlite row shape for scheduled_tasks.
type taskRow struct {
	ID          string         `db:"id"`
	RunAt       int64          `db:"run_at"`
	CommandName string         `db:"command_name"`
	CommandData string         `db:"command_data"`
	Repeat      string         `db:"repeat"`
	Status      string         `db:"status"`
	CreatedAt   string         `db:"created_at"`
	ExecutedAt  sql.NullString `db:"executed_at"`
}

func (row taskRow) toDomain() (domain.ScheduledTask, error) {
	created, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("decode created_at: %w", err)
	}

	task := domain.ScheduledTask{
		ID:          row.ID,
		RunAt:       time.Unix(row.RunAt, 0).UTC(),
		CommandName: row.CommandName,
		CommandData: row.CommandData,
		Repeat:      domain.RepeatInterval(row.Repeat),
		Status:      domain.ScheduleStatus(row.Status),
		CreatedAt:   created,
	}
	if row.ExecutedAt.Valid && row.ExecutedAt.String != "" {
		executed, err := time.Parse(time.RFC3339, row.ExecutedAt.String)
		if err == nil {
			task.ExecutedAt = &executed
		}
	}
	return task, nil
}

// AddTaskInput carries the three mutually-exclusive ways §4.13 allows
// a caller to place a task on the clock: an absolute instant, a delay
// in seconds from now, or a "HH:MM" wall-clock time.
type AddTaskInput struct {
	CommandName  string
	CommandData  string
	Repeat       domain.RepeatInterval
	RunAt        *time.Time
	DelaySeconds int
	Clock        string
}

// AddTask resolves in's scheduling fields to a concrete RunAt and
// inserts a pending row.
func (s *Store) AddTask(ctx context.Context, in AddTaskInput) (domain.ScheduledTask, error) {
	runAt, err := resolveRunAt(time.Now(), in)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	if in.Repeat == "" {
		in.Repeat = domain.RepeatOnce
	}

	task := domain.ScheduledTask{
		ID:          generateID(),
		RunAt:       runAt,
		CommandName: in.CommandName,
		CommandData: in.CommandData,
		Repeat:      in.Repeat,
		Status:      domain.ScheduleStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (id, run_at, command_name, command_data, repeat, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.RunAt.Unix(), task.CommandName, task.CommandData, string(task.Repeat), string(task.Status), task.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("schedule: insert task: %w", err)
	}
	return task, nil
}

func resolveRunAt(now time.Time, in AddTaskInput) (time.Time, error) {
	switch {
	case in.RunAt != nil:
		return *in.RunAt, nil
	case in.DelaySeconds > 0:
		return now.Add(time.Duration(in.DelaySeconds) * time.Second), nil
	case in.Clock != "":
		return resolveClock(now, in.Clock)
	default:
		return time.Time{}, errors.New("schedule: add_task requires run_at, delay, or clock")
	}
}

// resolveClock interprets clock as today's HH:MM instance, rolling to
// tomorrow if that instant has already passed (§4.13).
func resolveClock(now time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid clock %q: %w", clock, err)
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}

// CancelTask flips a pending task to cancelled (§4.13's cancel_task).
// It errors if id doesn't exist or is no longer pending.
func (s *Store) CancelTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET status = ? WHERE id = ? AND status = ?
	`, string(domain.ScheduleStatusCancelled), id, string(domain.ScheduleStatusPending))
	if err != nil {
		return fmt.Errorf("schedule: cancel %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule: cancel %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule: task %s is not pending", id)
	}
	return nil
}

// Get returns the task with the given id.
func (s *Store) Get(ctx context.Context, id string) (domain.ScheduledTask, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM scheduled_tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduledTask{}, fmt.Errorf("schedule: task %s not found", id)
	}
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("schedule: get %s: %w", id, err)
	}
	return row.toDomain()
}

// List returns every task ordered by when it next fires.
func (s *Store) List(ctx context.Context) ([]domain.ScheduledTask, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM scheduled_tasks ORDER BY run_at ASC`); err != nil {
		return nil, fmt.Errorf("schedule: list: %w", err)
	}

	out := make([]domain.ScheduledTask, 0, len(rows))
	for _, row := range rows {
		task, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// dueTasks returns every pending task whose run_at has arrived.
func (s *Store) dueTasks(ctx context.Context, now time.Time) ([]domain.ScheduledTask, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM scheduled_tasks WHERE status = ? AND run_at <= ? ORDER BY run_at ASC
	`, string(domain.ScheduleStatusPending), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("schedule: due tasks: %w", err)
	}

	out := make([]domain.ScheduledTask, 0, len(rows))
	for _, row := range rows {
		task, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

func (s *Store) complete(ctx context.Context, id string, executedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET status = ?, executed_at = ? WHERE id = ?
	`, string(domain.ScheduleStatusDone), executedAt.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("schedule: complete %s: %w", id, err)
	}
	return nil
}

func (s *Store) reschedule(ctx context.Context, id string, runAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE scheduled_tasks SET run_at = ? WHERE id = ?`, runAt.Unix(), id); err != nil {
		return fmt.Errorf("schedule: reschedule %s: %w", id, err)
	}
	return nil
}

func generateID() string {
	datePart := time.Now().UTC().Format("20060102")
	uniquePart := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
	return fmt.Sprintf("SCHED-%s-%s", datePart, uniquePart)
}
