// Package notification aggregates fulfillment events into the incomplete registry.
package notification

import (
	"sort"
	"sync"
	"time"
)

// Entry records one prescription group currently believed incomplete.
type Entry struct {
	GroupID     int64     `json:"prescription_group_id"`
	FirstMarked time.Time `json:"first_marked_at"`
	LastMarked  time.Time `json:"last_marked_at"`
}

// Registry is the set of incomplete prescription groups. It is the single
// shared state between the event handler, the report job and the HTTP read
// path, so every access goes through the mutex. Contents are volatile and
// lost on restart.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*Entry
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]*Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// MarkIncomplete records a group as incomplete. Duplicate delivery of the
// same observation only refreshes the last-marked timestamp.
func (r *Registry) MarkIncomplete(groupID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.entries[groupID]; ok {
		entry.LastMarked = now
		return
	}
	r.entries[groupID] = &Entry{
		GroupID:     groupID,
		FirstMarked: now,
		LastMarked:  now,
	}
}

// MarkCompleted drops a group from the registry. Returns false when the group
// was not tracked, which is a no-op, not an error.
func (r *Registry) MarkCompleted(groupID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[groupID]; !ok {
		return false
	}
	delete(r.entries, groupID)
	return true
}

// Snapshot returns the current incomplete set ordered by first observation,
// then group id. An empty snapshot is a valid outcome.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		snapshot = append(snapshot, *entry)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if !snapshot[i].FirstMarked.Equal(snapshot[j].FirstMarked) {
			return snapshot[i].FirstMarked.Before(snapshot[j].FirstMarked)
		}
		return snapshot[i].GroupID < snapshot[j].GroupID
	})
	return snapshot
}

// Len returns the number of tracked groups.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
