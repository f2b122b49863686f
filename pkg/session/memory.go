package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Expired sessions are
// dropped lazily on Load and in bulk by Sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock replaces the time source. Tests use this to control
// expiry.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Save(ctx context.Context, id string, values map[string]string, expiresAt time.Time) error {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	s.mu.Lock()
	s.sessions[id] = memorySession{values: copied, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (map[string]string, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.now().After(sess.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, nil
	}
	copied := make(map[string]string, len(sess.values))
	for k, v := range sess.values {
		copied[k] = v
	}
	return copied, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Sweep removes every expired session and returns how many were
// dropped. Callers run it periodically; the store never starts its own
// goroutine.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.sessions = make(map[string]memorySession)
	s.mu.Unlock()
	return nil
}
