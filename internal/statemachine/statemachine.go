// Package statemachine implements the Execution State Machine (C11,
// §4.11): a per-command lifecycle tracker with an append-only timeline,
// pause/cancel/rollback controls gated on the current state, and a
// pub/sub feed for anything watching a command (or all commands) live.
package statemachine

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deskagent/agent/internal/domain"
)

// activeStates are the states Active lists as still in flight.
var activeStates = map[domain.MachineState]bool{
	domain.StateInit:        true,
	domain.StateParsing:     true,
	domain.StatePolicyCheck: true,
	domain.StateGraphBuilt:  true,
	domain.StateNodeRunning: true,
	domain.StatePaused:      true,
}

// Subscriber receives a copy of a command's status on every transition
// or progress update.
type Subscriber func(domain.ExecutionStatus)

type subscription struct {
	id int
	fn Subscriber
}

// Machine tracks every in-flight command's ExecutionStatus and fans out
// updates to subscribers (§4.11).
type Machine struct {
	mu       sync.Mutex
	statuses map[string]*domain.ExecutionStatus
	perCmd   map[string][]subscription
	global   []subscription
	nextSub  int
	log      *logrus.Logger
}

// New returns an empty Machine. log may be nil, in which case a
// default logrus logger is used.
func New(log *logrus.Logger) *Machine {
	if log == nil {
		log = logrus.New()
	}
	return &Machine{
		statuses: make(map[string]*domain.ExecutionStatus),
		perCmd:   make(map[string][]subscription),
		log:      log,
	}
}

// Init registers a new command in StateInit and returns its status.
func (m *Machine) Init(commandID string) domain.ExecutionStatus {
	m.mu.Lock()
	status := &domain.ExecutionStatus{
		CommandID: commandID,
		State:     domain.StateInit,
		StartedAt: time.Now(),
		Controls:  domain.Controls{CanCancel: true},
	}
	m.statuses[commandID] = status
	m.mu.Unlock()

	m.addEvent(commandID, domain.StateInit, "command registered", "", nil)
	m.notify(commandID)
	return *status
}

// Transition moves commandID to newState, refusing anything
// domain.TransitionAllowed rejects — the Go-native vocabulary already
// encodes the legal graph, so this machine enforces it rather than
// letting a caller silently wedge a command into an inconsistent
// state. Unknown command ids are a no-op error.
func (m *Machine) Transition(commandID string, newState domain.MachineState, message, nodeID string, details map[string]string) error {
	m.mu.Lock()
	status, ok := m.statuses[commandID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("statemachine: unknown command %q", commandID)
	}
	if !domain.TransitionAllowed(status.State, newState) {
		m.mu.Unlock()
		return fmt.Errorf("statemachine: %s -> %s not allowed for %q", status.State, newState, commandID)
	}

	status.State = newState
	if message != "" {
		status.LastAction = message
	} else {
		status.LastAction = string(newState)
	}
	if nodeID != "" {
		status.CurrentNode = nodeID
	}

	switch newState {
	case domain.StateNodeRunning:
		status.Controls.CanPause = true
	case domain.StateCompleted, domain.StateFailed, domain.StateCancelled, domain.StateRolledBack:
		status.Controls.CanPause = false
		status.Controls.CanCancel = false
		status.CompletedAt = time.Now()
	}
	if newState == domain.StateCompleted {
		status.Controls.CanRollback = true
		status.ProgressPercent = 100
	}
	m.mu.Unlock()

	m.addEvent(commandID, newState, message, nodeID, details)
	m.notify(commandID)
	return nil
}

// UpdateProgress records how many of a graph's nodes have completed
// without appending a timeline event of its own.
func (m *Machine) UpdateProgress(commandID string, completed, total int, currentNode string) {
	m.mu.Lock()
	status, ok := m.statuses[commandID]
	if !ok {
		m.mu.Unlock()
		return
	}
	status.NodesCompleted = completed
	status.NodesTotal = total
	if total > 0 {
		status.ProgressPercent = completed * 100 / total
	}
	if currentNode != "" {
		status.CurrentNode = currentNode
	}
	m.mu.Unlock()

	m.notify(commandID)
}

// SetError records err against commandID and transitions it to Failed.
func (m *Machine) SetError(commandID, errMsg string) error {
	m.mu.Lock()
	if status, ok := m.statuses[commandID]; ok {
		status.Error = errMsg
	}
	m.mu.Unlock()
	return m.Transition(commandID, domain.StateFailed, "error: "+errMsg, "", nil)
}

func (m *Machine) addEvent(commandID string, state domain.MachineState, message, nodeID string, details map[string]string) {
	event := domain.TimelineEvent{
		Timestamp: time.Now(),
		State:     state,
		Message:   message,
		NodeID:    nodeID,
		Details:   details,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.statuses[commandID]; ok {
		status.Timeline = append(status.Timeline, event)
	}
}

// Timeline returns commandID's recorded events in the order they
// occurred.
func (m *Machine) Timeline(commandID string) []domain.TimelineEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[commandID]
	if !ok {
		return nil
	}
	return append([]domain.TimelineEvent{}, status.Timeline...)
}

// Get returns a snapshot of commandID's current status.
func (m *Machine) Get(commandID string) (domain.ExecutionStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[commandID]
	if !ok {
		return domain.ExecutionStatus{}, false
	}
	return *status, true
}

// Active returns every command in INIT, PARSING, POLICY_CHECK,
// GRAPH_BUILT, NODE_RUNNING or PAUSED. Commands in NODE_DONE,
// POLICY_BLOCKED, ROLLING_BACK or a terminal state are not listed.
func (m *Machine) Active() []domain.ExecutionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutionStatus
	for _, status := range m.statuses {
		if activeStates[status.State] {
			out = append(out, *status)
		}
	}
	return out
}

// Pause transitions commandID to Paused if its controls currently
// allow it.
func (m *Machine) Pause(commandID string) bool {
	status, ok := m.Get(commandID)
	if !ok || !status.Controls.CanPause {
		return false
	}
	return m.Transition(commandID, domain.StatePaused, "paused", "", nil) == nil
}

// Resume transitions a Paused command back to NodeRunning.
func (m *Machine) Resume(commandID string) bool {
	status, ok := m.Get(commandID)
	if !ok || status.State != domain.StatePaused {
		return false
	}
	return m.Transition(commandID, domain.StateNodeRunning, "resumed", "", nil) == nil
}

// Cancel transitions commandID to Cancelled if its controls currently
// allow it.
func (m *Machine) Cancel(commandID string) bool {
	status, ok := m.Get(commandID)
	if !ok || !status.Controls.CanCancel {
		return false
	}
	return m.Transition(commandID, domain.StateCancelled, "cancelled", "", nil) == nil
}

// RequestRollback transitions a Completed command to RollingBack.
func (m *Machine) RequestRollback(commandID string) bool {
	status, ok := m.Get(commandID)
	if !ok || !status.Controls.CanRollback {
		return false
	}
	return m.Transition(commandID, domain.StateRollingBack, "rolling back", "", nil) == nil
}

// MarkRolledBack transitions a RollingBack command to RolledBack.
func (m *Machine) MarkRolledBack(commandID string) error {
	return m.Transition(commandID, domain.StateRolledBack, "rolled back", "", nil)
}

// Subscribe registers fn against commandID's updates and returns a
// token Unsubscribe accepts. Go funcs aren't comparable, so — unlike
// the callback-list-and-remove shape this is grounded on — removal
// goes by token rather than by value.
func (m *Machine) Subscribe(commandID string, fn Subscriber) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.perCmd[commandID] = append(m.perCmd[commandID], subscription{id: id, fn: fn})
	return id
}

// SubscribeAll registers fn against every command's updates.
func (m *Machine) SubscribeAll(fn Subscriber) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.global = append(m.global, subscription{id: id, fn: fn})
	return id
}

// Unsubscribe removes the subscription token returned by Subscribe or
// SubscribeAll.
func (m *Machine) Unsubscribe(commandID string, token int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perCmd[commandID] = removeSub(m.perCmd[commandID], token)
	m.global = removeSub(m.global, token)
}

func removeSub(subs []subscription, token int) []subscription {
	for i, s := range subs {
		if s.id == token {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

func (m *Machine) notify(commandID string) {
	status, ok := m.Get(commandID)
	if !ok {
		return
	}

	m.mu.Lock()
	subs := append([]subscription{}, m.perCmd[commandID]...)
	subs = append(subs, m.global...)
	m.mu.Unlock()

	for _, s := range subs {
		m.safeCall(s.fn, status)
	}
}

func (m *Machine) safeCall(fn Subscriber, status domain.ExecutionStatus) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("command_id", status.CommandID).
				WithField("panic", r).
				Error("state machine subscriber panicked")
		}
	}()
	fn(status)
}

// FormatStatus renders commandID's status as a short multi-line
// summary suitable for a CLI.
func (m *Machine) FormatStatus(commandID string) string {
	status, ok := m.Get(commandID)
	if !ok {
		return fmt.Sprintf("unknown command: %s", commandID)
	}

	progress := ""
	if status.NodesTotal > 0 {
		progress = fmt.Sprintf(" [%d/%d]", status.NodesCompleted, status.NodesTotal)
	}

	lines := []string{
		fmt.Sprintf("[%s] %s", status.CommandID, status.State),
		fmt.Sprintf("  progress: %d%%%s", status.ProgressPercent, progress),
	}
	if status.CurrentNode != "" {
		lines = append(lines, fmt.Sprintf("  current: %s", status.CurrentNode))
	}
	if status.LastAction != "" {
		lines = append(lines, fmt.Sprintf("  action: %s", status.LastAction))
	}
	if status.Error != "" {
		lines = append(lines, fmt.Sprintf("  error: %s", status.Error))
	}

	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}

// FormatTimeline renders commandID's timeline as one line per event.
func (m *Machine) FormatTimeline(commandID string) string {
	timeline := m.Timeline(commandID)
	if len(timeline) == 0 {
		return fmt.Sprintf("no timeline for %s", commandID)
	}

	out := fmt.Sprintf("timeline [%s]", commandID)
	for _, event := range timeline {
		out += fmt.Sprintf("\n  %s | %s: %s", event.Timestamp.Format("15:04:05"), event.State, event.Message)
	}
	return out
}
