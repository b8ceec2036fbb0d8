package records

import (
	"context"
	"sync"
)

// MemoryStore keeps execution records in process memory. Suitable for
// tests and single-instance deployments without Postgres.
type MemoryStore struct {
	mu   sync.RWMutex
	seen map[recordKey]struct{}
}

type recordKey struct {
	uid  string
	kind string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[recordKey]struct{})}
}

func (s *MemoryStore) Executed(_ context.Context, messageUID, actionKind string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[recordKey{uid: messageUID, kind: actionKind}]
	return ok, nil
}

func (s *MemoryStore) MarkExecuted(_ context.Context, messageUID, actionKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[recordKey{uid: messageUID, kind: actionKind}] = struct{}{}
	return nil
}
