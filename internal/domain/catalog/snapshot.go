// Package catalog implements the medicine catalog aggregate.
package catalog

import (
	"sort"
	"strings"
	"time"
)

// Snapshot is one complete name->price mapping. The store keeps the current
// snapshot as a single document; replacing it is a wholesale swap, never a merge.
type Snapshot struct {
	ID        string
	Medicines map[string]int
	CreatedAt time.Time
}

// NewSnapshot creates a snapshot with the given id and mapping.
func NewSnapshot(id string, medicines map[string]int) *Snapshot {
	return &Snapshot{
		ID:        id,
		Medicines: medicines,
		CreatedAt: time.Now().UTC(),
	}
}

// Contains reports whether a medicine name is present. Names are compared
// exactly; case-insensitivity applies only to similarity search.
func (s *Snapshot) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Medicines[name]
	return ok
}

// Names returns all medicine names in the snapshot.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Medicines))
	for name := range s.Medicines {
		names = append(names, name)
	}
	return names
}

// Len returns the number of medicines in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Medicines)
}

// RankSimilar filters names containing the search term (case-insensitive) and
// orders them: names starting with the term first, then shorter names, then
// alphabetically. The result is truncated to limit after ranking.
func RankSimilar(names []string, term string, limit int) []string {
	upperTerm := strings.ToUpper(strings.TrimSpace(term))
	if upperTerm == "" {
		return []string{}
	}

	matches := make([]string, 0)
	for _, name := range names {
		if strings.Contains(strings.ToUpper(name), upperTerm) {
			matches = append(matches, name)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToUpper(matches[i]), upperTerm)
		pj := strings.HasPrefix(strings.ToUpper(matches[j]), upperTerm)
		if pi != pj {
			return pi
		}
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
