// Package registry implements the Command Registry (§4.1): it assigns
// every user request a unique command id and tracks its status
// through to a terminal state.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskagent/agent/internal/domain"
)

// evictBatch is how many of the oldest records are dropped once the
// registry exceeds its capacity (§4.1).
const evictBatch = 100

// Registry is the in-memory, mutex-guarded command registry. It is
// safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	records  map[string]*domain.CommandRecord
	capacity int
}

// New returns a Registry bounded to capacity records; once exceeded,
// the oldest evictBatch records (by CreatedAt) are dropped.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Registry{
		records:  make(map[string]*domain.CommandRecord),
		capacity: capacity,
	}
}

// GenerateID returns a fresh "CMD-YYYYMMDD-XXXX" id: today's date plus
// four upper-hex digits drawn from a fresh UUID.
func GenerateID() string {
	datePart := time.Now().Format("20060102")
	uniquePart := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:4]
	return fmt.Sprintf("CMD-%s-%s", datePart, uniquePart)
}

// Register assigns a fresh id to rawInput and stores a PENDING record.
func (r *Registry) Register(rawInput string, intent domain.Intent) string {
	id := GenerateID()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[id] = &domain.CommandRecord{
		ID:        id,
		RawInput:  rawInput,
		Intent:    intent,
		Status:    domain.CommandStatusPending,
		CreatedAt: time.Now(),
	}
	r.evictLocked()

	return id
}

func (r *Registry) evictLocked() {
	if len(r.records) <= r.capacity {
		return
	}

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.records[ids[i]].CreatedAt.Before(r.records[ids[j]].CreatedAt)
	})

	n := evictBatch
	if n > len(ids) {
		n = len(ids)
	}
	for _, id := range ids[:n] {
		delete(r.records, id)
	}
}

// UpdateStatus moves id to status, validating the transition, and
// stamps CompletedAt when status is terminal. Returns false if id is
// unknown or the transition is illegal.
func (r *Registry) UpdateStatus(id string, status domain.CommandStatus, result, errMsg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || !domain.CanTransition(rec.Status, status) {
		return false
	}

	rec.Status = status
	if status.IsTerminal() {
		now := time.Now()
		rec.CompletedAt = &now
	}
	if result != "" {
		rec.Result = result
	}
	if errMsg != "" {
		rec.Error = errMsg
	}
	return true
}

// SetIntent sets the record's resolved intent once the pipeline has
// parsed it.
func (r *Registry) SetIntent(id string, intent domain.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		rec.Intent = intent
	}
}

// SetRollbackAvailable marks whether id's effects can be rolled back.
func (r *Registry) SetRollbackAvailable(id string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		rec.RollbackAvailable = available
	}
}

// Get returns a copy of the record for id, or false if unknown.
func (r *Registry) Get(id string) (domain.CommandRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.CommandRecord{}, false
	}
	return *rec, true
}

// GetRecent returns up to n records, most-recently-created first.
func (r *Registry) GetRecent(n int) []domain.CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*domain.CommandRecord, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if n > len(all) {
		n = len(all)
	}
	out := make([]domain.CommandRecord, n)
	for i := 0; i < n; i++ {
		out[i] = *all[i]
	}
	return out
}

// GetByStatus returns every record currently in status.
func (r *Registry) GetByStatus(status domain.CommandStatus) []domain.CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.CommandRecord
	for _, rec := range r.records {
		if rec.Status == status {
			out = append(out, *rec)
		}
	}
	return out
}

// GetRollbackable returns every COMPLETED record with rollback
// available.
func (r *Registry) GetRollbackable() []domain.CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.CommandRecord
	for _, rec := range r.records {
		if rec.RollbackAvailable && rec.Status == domain.CommandStatusCompleted {
			out = append(out, *rec)
		}
	}
	return out
}

// Stats summarises the registry's current contents.
type Stats struct {
	Total        int
	ByStatus     map[domain.CommandStatus]int
	Rollbackable int
}

// Stats computes a snapshot of the registry's current contents.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{ByStatus: make(map[domain.CommandStatus]int)}
	for _, rec := range r.records {
		stats.Total++
		stats.ByStatus[rec.Status]++
		if rec.RollbackAvailable && rec.Status == domain.CommandStatusCompleted {
			stats.Rollbackable++
		}
	}
	return stats
}
