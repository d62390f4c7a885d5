// Package watch implements the Watcher Subsystem (C12, §4.12):
// debounced filesystem observers that can re-enter the pipeline with a
// gated mini-plan when they fire.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deskagent/agent/internal/domain"
	"github.com/deskagent/agent/internal/observability"
)

// debounceWindow is how close two events on the same path have to be
// for the second to be ignored (§4.12).
const debounceWindow = 2 * time.Second

// Dispatcher re-enters a watcher-triggered Command at the Decision
// Engine (C5), so the watcher path is policy-gated exactly like user
// input. Defined here rather than depended on, so the composition root
// wires a concrete implementation rather than internal/watch depending
// on internal/decision.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
}

// Notifier surfaces a watcher firing to the UI (and, per §4.12,
// optionally an OS toast) without internal/watch depending on whatever
// owns the UI channel.
type Notifier interface {
	Notify(watchID, message string)
}

// Manager owns every active WatchTask and the fsnotify watcher behind
// it, debouncing repeat events per (watch_id, path) and dispatching
// on_change mini-plans back through Dispatcher (§4.12).
type Manager struct {
	mu         sync.Mutex
	active     map[string]*activeWatch
	dispatch   Dispatcher
	notify     Notifier
	log        *logrus.Logger
	metrics    *observability.Metrics
	subscriber []func([]domain.WatchTask)
}

type activeWatch struct {
	task      domain.WatchTask
	fsw       *fsnotify.Watcher
	lastFired map[string]time.Time
	stop      chan struct{}
}

// New returns an empty Manager. dispatch and notify may be nil in
// tests; a real composition root always supplies both. log may be nil.
func New(dispatch Dispatcher, notify Notifier, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		active:   make(map[string]*activeWatch),
		dispatch: dispatch,
		notify:   notify,
		log:      log,
		metrics:  observability.Global(),
	}
}

// StartWatch begins observing folder (and, recursively, everything
// already under it) for file creation, assigning a fresh eight-hex-
// character watch id (§4.12). filterKey, when non-empty, restricts
// firing to names containing it (case-insensitive); onChange, when
// present, is re-entered through Dispatcher on every fire.
func (m *Manager) StartWatch(ctx context.Context, folder, filterKey, actionType string, onChange *domain.Command) (domain.WatchTask, error) {
	resolved, err := filepath.Abs(folder)
	if err != nil {
		return domain.WatchTask{}, fmt.Errorf("watch: resolve %s: %w", folder, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return domain.WatchTask{}, fmt.Errorf("watch: create observer: %w", err)
	}
	if err := addRecursive(fsw, resolved); err != nil {
		fsw.Close()
		return domain.WatchTask{}, fmt.Errorf("watch: observe %s: %w", resolved, err)
	}

	task := domain.WatchTask{
		WatchID:      generateWatchID(),
		Folder:       folder,
		ResolvedPath: resolved,
		FilterKey:    filterKey,
		ActionType:   actionType,
		StartedAt:    time.Now(),
		OnChange:     onChange,
	}

	aw := &activeWatch{task: task, fsw: fsw, lastFired: make(map[string]time.Time), stop: make(chan struct{})}

	m.mu.Lock()
	m.active[task.WatchID] = aw
	m.mu.Unlock()

	go m.run(ctx, aw)
	m.metrics.WatchesActive.Inc()
	m.notifySubscribers()

	return task, nil
}

// addRecursive registers root and every directory beneath it with fsw.
// fsnotify has no native recursive mode, so the tree is walked once up
// front — matching watchdog's recursive=True at start time.
// TODO: directories created after the watch starts are not picked up;
// doing so would mean handling directory Create events in run() and
// calling fsw.Add on them as they appear.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (m *Manager) run(ctx context.Context, aw *activeWatch) {
	defer aw.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-aw.stop:
			return
		case event, ok := <-aw.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			m.handleEvent(ctx, aw, event.Name)
		case err, ok := <-aw.fsw.Errors:
			if !ok {
				return
			}
			m.log.WithField("watch_id", aw.task.WatchID).WithError(err).Error("watcher observer error")
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, aw *activeWatch, path string) {
	name := filepath.Base(path)
	if aw.task.FilterKey != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(aw.task.FilterKey)) {
		return
	}

	now := time.Now()
	if last, ok := aw.lastFired[path]; ok && now.Sub(last) < debounceWindow {
		return
	}
	aw.lastFired[path] = now
	m.metrics.WatcherEventsTotal.WithLabelValues(aw.task.ActionType).Inc()

	if m.notify != nil {
		m.notify.Notify(aw.task.WatchID, fmt.Sprintf("[%s] detected %s", aw.task.WatchID, name))
	}

	if aw.task.OnChange == nil || m.dispatch == nil {
		return
	}

	cmd := *aw.task.OnChange
	cmd.TriggerFile = path
	cmd.TriggerFolder = filepath.Dir(path)
	cmd.TriggerWatch = aw.task.WatchID

	if err := m.dispatch.Dispatch(ctx, cmd); err != nil {
		m.log.WithField("watch_id", aw.task.WatchID).WithError(err).Error("on_change dispatch failed")
	}
}

// StopWatch unschedules and removes watchID, reporting whether it was
// found.
func (m *Manager) StopWatch(watchID string) bool {
	m.mu.Lock()
	aw, ok := m.active[watchID]
	if ok {
		delete(m.active, watchID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	close(aw.stop)
	m.metrics.WatchesActive.Dec()
	m.notifySubscribers()
	return true
}

// StopAll unschedules every active watch and returns how many there
// were.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	all := make([]*activeWatch, 0, len(m.active))
	for _, aw := range m.active {
		all = append(all, aw)
	}
	m.active = make(map[string]*activeWatch)
	m.mu.Unlock()

	for _, aw := range all {
		close(aw.stop)
	}
	if n := len(all); n > 0 {
		m.metrics.WatchesActive.Sub(float64(n))
	}
	m.notifySubscribers()
	return len(all)
}

// List returns every currently active WatchTask.
func (m *Manager) List() []domain.WatchTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.WatchTask, 0, len(m.active))
	for _, aw := range m.active {
		out = append(out, aw.task)
	}
	return out
}

// Subscribe registers fn to be called with the full active-watch list
// whenever a watch starts or stops (§4.12: "A subscriber list is
// notified on any change for UI refresh").
func (m *Manager) Subscribe(fn func([]domain.WatchTask)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriber = append(m.subscriber, fn)
}

func (m *Manager) notifySubscribers() {
	list := m.List()
	m.mu.Lock()
	subs := append([]func([]domain.WatchTask){}, m.subscriber...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(list)
	}
}

func generateWatchID() string {
	return strings.ToLower(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
}
