package data

import (
	"context"
	"sync"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

// memoryStore keeps group histories in process memory.
// When limit > 0 the oldest messages are dropped past limit.
type memoryStore struct {
	mu      sync.RWMutex
	history map[string][]*domain.NormalizedMessage
	limit   int
}

// NewMemoryStore creates an in-memory message store; limit 0 means unbounded
func NewMemoryStore(limit int) repo.MessageStore {
	return &memoryStore{
		history: make(map[string][]*domain.NormalizedMessage),
		limit:   limit,
	}
}

func (s *memoryStore) Append(ctx context.Context, groupID string, msg *domain.NormalizedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.history[groupID], msg)
	if s.limit > 0 && len(msgs) > s.limit {
		// Copy so the dropped prefix can be collected
		trimmed := make([]*domain.NormalizedMessage, s.limit)
		copy(trimmed, msgs[len(msgs)-s.limit:])
		msgs = trimmed
	}
	s.history[groupID] = msgs
	return nil
}

func (s *memoryStore) List(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.history[groupID]
	out := make([]*domain.NormalizedMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *memoryStore) Drain(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.history[groupID]
	delete(s.history, groupID)
	if msgs == nil {
		msgs = []*domain.NormalizedMessage{}
	}
	return msgs, nil
}

func (s *memoryStore) Purge(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, groupID)
	return nil
}

func (s *memoryStore) Counts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.history))
	for id, msgs := range s.history {
		out[id] = len(msgs)
	}
	return out, nil
}

func (s *memoryStore) Close() error {
	return nil
}
