package driver

import "sync"

// sessionLocks is a refcounted per-session mutex map: Lock acquires
// (creating if absent) the mutex for a session ID and returns an
// unlock func that also drops the map entry once nobody else holds a
// reference to it, so the map doesn't grow unboundedly across a long
// server lifetime. Exists to guarantee at most one in-flight Send per
// session.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*refcountedMutex
}

type refcountedMutex struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*refcountedMutex)}
}

// Lock blocks until the named session's mutex is free, then returns a
// func that releases it.
func (s *sessionLocks) Lock(sessionID string) func() {
	s.mu.Lock()
	rm, ok := s.locks[sessionID]
	if !ok {
		rm = &refcountedMutex{}
		s.locks[sessionID] = rm
	}
	rm.refs++
	s.mu.Unlock()

	rm.mu.Lock()

	return func() {
		rm.mu.Unlock()

		s.mu.Lock()
		rm.refs--
		if rm.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}
