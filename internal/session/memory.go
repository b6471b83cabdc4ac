package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions for the lifetime of the process
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]Session),
	}
}

func (m *MemoryStore) Load(ctx context.Context, chatID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.sessions[chatID]
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, chatID int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[chatID] = *s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
	return nil
}
