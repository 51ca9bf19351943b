// internal/templates/locks.go
package templates

import "sync"

// LockSet hands out one mutex per template id. Entries are reference counted
// and dropped once nobody holds or waits for them.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*recordLock)}
}

// Lock blocks until id is free and returns the matching unlock function.
func (s *LockSet) Lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &recordLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *LockSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
