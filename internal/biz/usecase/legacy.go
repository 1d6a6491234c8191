package usecase

import (
	"sort"
	"sync"
)

// LegacyActiveSet is the flat set of chat ids from before per-group
// subscriptions existed. It only feeds the chat cache's active flag.
// An empty set means every chat is active.
type LegacyActiveSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewLegacyActiveSet creates a set seeded with ids
func NewLegacyActiveSet(ids ...string) *LegacyActiveSet {
	s := &LegacyActiveSet{ids: make(map[string]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

// Add inserts chat ids
func (s *LegacyActiveSet) Add(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

// Replace swaps the whole set
func (s *LegacyActiveSet) Replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			next[id] = struct{}{}
		}
	}
	s.mu.Lock()
	s.ids = next
	s.mu.Unlock()
}

// IsActive reports whether chatID counts as active
func (s *LegacyActiveSet) IsActive(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ids) == 0 {
		return true
	}
	_, ok := s.ids[chatID]
	return ok
}

// IDs returns the members sorted
func (s *LegacyActiveSet) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
