package rollback

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultRetentionHours is the retention window used when the caller
// passes a non-positive one; config.AgentConfig's TrashRetentionHours
// defaults to 72. Hours are converted to the day granularity ClearTrash
// works in.
const defaultRetentionHours = 24

// RetentionSweeper periodically clears trash older than a configured
// retention window, so a long-running agent doesn't accumulate deleted
// files forever (SPEC_FULL.md supplemented feature: trash retention
// sweep). It wraps Engine.ClearTrash the same way internal/schedule's
// Loop wraps Store.dueTasks — a ticker driving one idempotent sweep
// per period.
type RetentionSweeper struct {
	engine        *Engine
	retentionDays int
	interval      time.Duration
	log           *logrus.Logger

	stop chan struct{}
	done chan struct{}
}

// NewRetentionSweeper returns a sweeper over engine. retentionHours <=
// 0 defaults to 24h (one day); interval <= 0 defaults to running once
// every hour. log may be nil.
func NewRetentionSweeper(engine *Engine, retentionHours int, interval time.Duration, log *logrus.Logger) *RetentionSweeper {
	if retentionHours <= 0 {
		retentionHours = defaultRetentionHours
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logrus.New()
	}
	days := retentionHours / 24
	if days < 1 {
		days = 1
	}
	return &RetentionSweeper{
		engine:        engine,
		retentionDays: days,
		interval:      interval,
		log:           log,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until ctx is cancelled
// or Stop is called.
func (s *RetentionSweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (s *RetentionSweeper) Stop() {
	close(s.stop)
	<-s.done
}

// Sweep runs one retention pass immediately, logging how many
// command-trash directories it removed. Exported so a CLI command or
// an on-demand "clean trash now" operation can trigger it outside the
// ticker.
func (s *RetentionSweeper) Sweep() int {
	deleted, err := s.engine.ClearTrash(s.retentionDays)
	if err != nil {
		s.log.WithError(err).Error("rollback: retention sweep failed")
		return 0
	}
	if deleted > 0 {
		s.log.WithField("deleted", deleted).Info("rollback: retention sweep cleared trash")
	}
	return deleted
}
