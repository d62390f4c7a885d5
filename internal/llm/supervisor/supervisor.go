// Package supervisor keeps the LLM worker process alive and exposes a
// circuit-broken Call surface over it (§4.14: "the supervisor probes,
// restarts, and throttles the worker process so a stuck model never
// blocks the rest of the agent"). The worker binary and the model it
// wraps remain external collaborators; this package only manages the
// process lifecycle and the IPC client in front of it.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deskagent/agent/infrastructure/resilience"
	"github.com/deskagent/agent/internal/llm/ipc"
	"github.com/deskagent/agent/internal/observability"
	"github.com/deskagent/agent/internal/platform/config"
)

// Config wires a Supervisor against the worker binary and the socket
// it listens on.
type Config struct {
	LLM         config.LLMConfig
	WorkerPath  string   // path to the cmd/llmworker binary
	WorkerArgs  []string // extra args passed to the worker on spawn
}

// Supervisor owns one worker subprocess: it probes the socket on a
// timer, spawns (and waits for readiness) when the probe fails, and
// backs off and eventually throttles restarts after repeated failures
// (§4.14: "after three consecutive failed restarts the supervisor
// stops trying for a cooldown period").
type Supervisor struct {
	cfg     Config
	client  *ipc.Client
	cb      *resilience.CircuitBreaker
	log     *logrus.Logger
	metrics *observability.Metrics

	mu             sync.Mutex
	cmd            *exec.Cmd
	restartStreak  int
	throttledUntil time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// New returns a Supervisor for cfg. log may be nil.
func New(cfg Config, log *logrus.Logger) *Supervisor {
	if log == nil {
		log = logrus.New()
	}
	callTimeout := time.Duration(cfg.LLM.CallTimeoutSecs) * time.Second
	metrics := observability.Global()
	cb := resilience.New(resilience.Config{
		MaxFailures: cfg.LLM.MaxRestartStreak,
		Timeout:     30 * time.Second,
		HalfOpenMax: 1,
		OnStateChange: func(_, to resilience.State) {
			metrics.WorkerCircuitState.Set(float64(to))
		},
	})
	return &Supervisor{
		cfg:     cfg,
		client:  ipc.NewClient(cfg.LLM.Host, cfg.LLM.Port, cfg.LLM.AuthKey, callTimeout),
		cb:      cb,
		log:     log,
		metrics: metrics,
		stop:    make(chan struct{}),
	}
}

// Start launches the probe loop in the background, spawning the
// worker immediately if it isn't already listening.
func (s *Supervisor) Start(ctx context.Context) {
	s.ensureRunning(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		interval := time.Duration(s.cfg.LLM.ProbeIntervalSecs) * time.Second
		if interval <= 0 {
			interval = 5 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.ensureRunning(ctx)
			}
		}
	}()
}

// Stop halts the probe loop and terminates the worker process if this
// Supervisor started it.
func (s *Supervisor) Stop() {
	close(s.stop)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// ensureRunning probes the worker and, if it's down and the
// supervisor isn't throttled, spawns it and waits for readiness.
func (s *Supervisor) ensureRunning(ctx context.Context) {
	if s.client.Probe(ctx, 2*time.Second) {
		s.mu.Lock()
		s.restartStreak = 0
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if !s.throttledUntil.IsZero() && time.Now().Before(s.throttledUntil) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.restart(ctx); err != nil {
		s.log.WithError(err).Warn("llm supervisor: restart failed")
		s.mu.Lock()
		s.restartStreak++
		if s.restartStreak >= s.cfg.LLM.MaxRestartStreak {
			s.throttledUntil = time.Now().Add(30 * time.Second)
			s.log.WithField("restart_streak", s.restartStreak).Warn("llm supervisor: throttling restarts")
		}
		s.mu.Unlock()
	}
}

func (s *Supervisor) restart(ctx context.Context) error {
	s.mu.Lock()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	cmd := exec.CommandContext(ctx, s.cfg.WorkerPath, s.cfg.WorkerArgs...)
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: spawn worker: %w", err)
	}
	s.cmd = cmd
	s.mu.Unlock()

	readyTimeout := time.Duration(s.cfg.LLM.ReadyTimeoutSecs) * time.Second
	if readyTimeout <= 0 {
		readyTimeout = 60 * time.Second
	}
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		if s.client.Probe(ctx, 1*time.Second) {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("supervisor: worker not ready after %s", readyTimeout)
}

// Call routes a single prompt through the circuit breaker in front of
// the IPC client, so a sick worker trips the breaker instead of
// stacking up blocked callers (§4.14).
func (s *Supervisor) Call(ctx context.Context, prompt string, appContext map[string]string) (ipc.Response, error) {
	start := time.Now()
	var resp ipc.Response
	err := s.cb.Execute(ctx, func() error {
		var callErr error
		resp, callErr = s.client.Call(ctx, prompt, appContext)
		if callErr != nil {
			return callErr
		}
		if !resp.Success {
			return fmt.Errorf("llm worker: %s", resp.Error)
		}
		return nil
	})
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordLLMCall(outcome, time.Since(start))
	if err != nil {
		return ipc.Response{}, err
	}
	return resp, nil
}
