package memory

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"exam-simulator/internal/app"
)

// ControllerStore is an in-memory implementation of app.ControllerRepository.
type ControllerStore struct {
	mu          sync.Mutex
	controllers map[string]*app.Controller
	creating    singleflight.Group
}

func NewControllerStore() *ControllerStore {
	return &ControllerStore{
		controllers: make(map[string]*app.Controller),
	}
}

// GetOrCreate returns the live controller for sessionID or registers the one
// built by create. Concurrent calls for one id share a single create; other
// ids are not held up by it. created is true only for the call whose create ran.
func (s *ControllerStore) GetOrCreate(sessionID string, create func() (*app.Controller, error)) (*app.Controller, bool, error) {
	if ctrl, ok := s.Get(sessionID); ok {
		return ctrl, false, nil
	}
	created := false
	v, err, _ := s.creating.Do(sessionID, func() (any, error) {
		if ctrl, ok := s.Get(sessionID); ok {
			return ctrl, nil
		}
		ctrl, err := create()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.controllers[sessionID] = ctrl
		s.mu.Unlock()
		created = true
		return ctrl, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*app.Controller), created, nil
}

func (s *ControllerStore) Get(sessionID string) (*app.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl, ok := s.controllers[sessionID]
	return ctrl, ok
}

func (s *ControllerStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.controllers, sessionID)
}

// Len reports how many sessions are live.
func (s *ControllerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}

// CloseAll stops every live controller and empties the store.
func (s *ControllerStore) CloseAll() {
	s.mu.Lock()
	controllers := s.controllers
	s.controllers = make(map[string]*app.Controller)
	s.mu.Unlock()
	for _, ctrl := range controllers {
		ctrl.Close()
	}
}
