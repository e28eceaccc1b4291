package memory

import (
	"context"
	"sync"
)

// SessionStorage keeps persisted session keys in a map. It satisfies
// app.SessionStorage.
type SessionStorage struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewSessionStorage() *SessionStorage {
	return &SessionStorage{data: make(map[string]map[string][]byte)}
}

func (s *SessionStorage) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.data[sessionID]
	if !ok {
		keys = make(map[string][]byte)
		s.data[sessionID] = keys
	}
	keys[key] = append([]byte(nil), value...)
	return nil
}

func (s *SessionStorage) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[sessionID][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *SessionStorage) Delete(_ context.Context, sessionID string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data[sessionID]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(stored, key)
	}
	if len(stored) == 0 {
		delete(s.data, sessionID)
	}
	return nil
}
