// Package memstore is an in-process sessionstore.Store backed by a plain
// map that clones result maps on both Save and Get.
package memstore

import (
	"context"
	"sync"
	"time"

	"goa.design/federator/planner/sessionstore"
)

type entry struct {
	results   map[string]string
	expiresAt time.Time
}

// Store is a mutex-guarded map of session id to result-location map. Zero
// value is not usable; construct with New.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New builds an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Get implements sessionstore.Store.
func (s *Store) Get(_ context.Context, sessionID string) (map[string]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return cloneResults(e.results), true, nil
}

// Save implements sessionstore.Store.
func (s *Store) Save(_ context.Context, sessionID string, results map[string]string) error {
	clone := cloneResults(results)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = entry{results: clone, expiresAt: time.Now().Add(sessionstore.TTL)}
	return nil
}

// GC removes expired sessions. It is meant to be called from a periodic
// ticker in the host process; if a concurrent Get or Save currently holds
// the lock, GC skips this round rather than blocking on it, trusting the
// next tick to catch up on whatever this round missed.
func (s *Store) GC() {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func cloneResults(results map[string]string) map[string]string {
	clone := make(map[string]string, len(results))
	for k, v := range results {
		clone[k] = v
	}
	return clone
}
