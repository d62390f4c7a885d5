// Package worldmodel implements the World Model (§4.2): it supplies
// per-intent defaults and inherits context from the prior step so the
// Decision Engine rarely needs to ask "where?" or "what should I call
// it?".
package worldmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deskagent/agent/infrastructure/state"
	"github.com/deskagent/agent/internal/domain"
)

// persistenceKey is the single PersistentState key a Model's context
// map round-trips under, when persistence is enabled.
const persistenceKey = "context"

// DefaultContext is the per-intent default target/name/extension.
type DefaultContext struct {
	Location  string
	Name      string
	Extension string
}

// defaults mirrors the original system's DEFAULTS table.
var defaults = map[domain.Intent]DefaultContext{
	domain.IntentCreateFile:   {Location: string(LocationDesktop), Name: "new_file", Extension: ".txt"},
	domain.IntentCreateFolder: {Location: string(LocationDesktop), Name: "new_folder"},
	domain.IntentWatch:        {Location: string(LocationDownloads)},
	domain.IntentClean:        {Location: string(LocationDownloads)},
	domain.IntentOpen:         {Name: "chrome"},
}

// contextInheritors resolves, for a given previous intent and current
// intent, the context key to read for an inherited location (§4.2:
// "after a watch downloads, a subsequent create_folder defaults to
// downloads").
var contextInheritors = map[domain.Intent]map[domain.Intent]string{
	domain.IntentWatch: {
		domain.IntentCreateFolder: "watch_target",
		domain.IntentCreateFile:   "watch_target",
	},
}

// inheritableTargets are the intents eligible to reuse the last
// location used, per rule (3) of infer_location.
var inheritableTargets = map[domain.Intent]bool{
	domain.IntentCreateFolder: true,
	domain.IntentCreateFile:   true,
}

// Model tracks context across a session: the last intent/location
// acted on and a free-form key/value context map (e.g. "watch_target").
// Safe for concurrent use.
type Model struct {
	mu           sync.Mutex
	context      map[string]string
	lastIntent   domain.Intent
	lastLocation string
	persist      *state.PersistentState
}

// New returns an empty, purely in-memory World Model: context resets
// every process restart.
func New() *Model {
	return &Model{context: make(map[string]string)}
}

// NewWithPersistence returns a World Model whose context map is backed
// by a state.PersistenceBackend (typically a sqlite-backed one from
// the composition root), restoring any context saved by a previous
// run before returning. A fresh backend with nothing saved yet starts
// the model with an empty context, same as New.
func NewWithPersistence(ctx context.Context, backend state.PersistenceBackend) (*Model, error) {
	persist, err := state.NewPersistentState(state.Config{Backend: backend, KeyPrefix: "worldmodel:"})
	if err != nil {
		return nil, fmt.Errorf("worldmodel: init persistence: %w", err)
	}

	m := &Model{context: make(map[string]string), persist: persist}

	raw, err := persist.Load(ctx, persistenceKey)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return m, nil
		}
		return nil, fmt.Errorf("worldmodel: load saved context: %w", err)
	}
	if err := json.Unmarshal(raw, &m.context); err != nil {
		return nil, fmt.Errorf("worldmodel: decode saved context: %w", err)
	}
	m.lastIntent = domain.Intent(m.context["last_intent"])
	m.lastLocation = m.context["last_location"]
	return m, nil
}

// UpdateContext records a free-form context key, e.g. "watch_target".
func (m *Model) UpdateContext(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.context[key] = value
	m.saveLocked()
}

// SetLastAction records the most recently completed intent/location so
// later inheritance rules can see it.
func (m *Model) SetLastAction(intent domain.Intent, location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastIntent = intent
	m.context["last_intent"] = string(intent)
	if location != "" {
		m.lastLocation = location
		m.context["last_location"] = location
	}
	m.saveLocked()
}

// saveLocked persists the current context map if persistence is
// enabled; callers hold m.mu. Save errors are swallowed to a no-op —
// losing the ability to remember context across a restart is not
// worth failing the in-memory operation that triggered it.
func (m *Model) saveLocked() {
	if m.persist == nil {
		return
	}
	data, err := json.Marshal(m.context)
	if err != nil {
		return
	}
	_ = m.persist.Save(context.Background(), persistenceKey, data)
}

// GetDefault returns the default context for intent, or a zero value
// if intent has none.
func GetDefault(intent domain.Intent) DefaultContext {
	return defaults[intent]
}

// InferLocation resolves a location for intent in priority order:
// explicit > inherited from the prior step > last location used (for
// create-class intents) > per-intent default.
func (m *Model) InferLocation(intent domain.Intent, explicit string) string {
	if explicit != "" {
		return ResolveLocation(explicit)
	}

	m.mu.Lock()
	lastIntent := m.lastIntent
	lastLocation := m.lastLocation
	contextCopy := make(map[string]string, len(m.context))
	for k, v := range m.context {
		contextCopy[k] = v
	}
	m.mu.Unlock()

	if inheritors, ok := contextInheritors[lastIntent]; ok {
		if key, ok := inheritors[intent]; ok {
			if inherited := contextCopy[key]; inherited != "" {
				return ResolveLocation(inherited)
			}
			return ResolveLocation(string(LocationDesktop))
		}
	}

	if lastLocation != "" && inheritableTargets[intent] {
		return lastLocation
	}

	return ResolveLocation(defaults[intent].Location)
}

// InferName resolves a name for intent: explicit, or a default base
// name plus an "HHMM" timestamp for uniqueness.
func (m *Model) InferName(intent domain.Intent, explicit string) string {
	if explicit != "" {
		return explicit
	}

	def := defaults[intent]
	base := def.Name
	if base == "" {
		base = "item"
	}
	timestamp := time.Now().Format("1504")

	if intent == domain.IntentCreateFile {
		return fmt.Sprintf("%s_%s%s", base, timestamp, def.Extension)
	}
	return fmt.Sprintf("%s_%s", base, timestamp)
}

// CompleteCommand fills in a missing Target/Loc on cmd from context
// and defaults, tagging each inferred field via Command.MarkInferred,
// and records the resulting action for future inheritance.
func (m *Model) CompleteCommand(cmd domain.Command) domain.Command {
	completed := cmd

	if isBlank(completed.Loc) {
		if inferred := m.InferLocation(completed.Intent, ""); inferred != "" {
			completed.Loc = inferred
			completed.MarkInferred("loc")
		}
	}

	if isBlank(completed.Target) {
		if inferred := m.InferName(completed.Intent, ""); inferred != "" {
			completed.Target = inferred
			completed.MarkInferred("target")
		}
	}

	m.SetLastAction(completed.Intent, completed.Loc)
	return completed
}

func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "?"
}

// FormatInference renders a human-readable note about what was
// inferred, for display alongside a MEDIUM-confidence notification.
func FormatInference(cmd domain.Command) string {
	var parts []string
	if !cmd.IsFieldExplicit("loc") && cmd.Loc != "" {
		parts = append(parts, fmt.Sprintf("location: %s (default)", cmd.Loc))
	}
	if !cmd.IsFieldExplicit("target") && cmd.Target != "" {
		parts = append(parts, fmt.Sprintf("name: %s (default)", cmd.Target))
	}
	return strings.Join(parts, " | ")
}
