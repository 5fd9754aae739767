package cache

import (
	"sync"
	"time"
)

// entry stores one cached value with expiry.
type entry struct {
	expiresAt time.Time
	value     any
}

// Store is an in-process key/value cache with per-entry TTL.
// A read at or past expiry is a miss, never a stale hit. Entries are
// only ever overwritten whole, so concurrent callers need no locking
// beyond the store's own.
type Store struct {
	maxItems int

	mu    sync.RWMutex
	items map[string]entry

	now func() time.Time // swapped out in tests
}

// New builds a store. maxItems <= 0 means unbounded.
func New(maxItems int) *Store {
	return &Store{
		maxItems: maxItems,
		items:    make(map[string]entry),
		now:      time.Now,
	}
}

// Get returns the value under key if it has not expired.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set overwrites the value under key. A non-positive TTL is a no-op.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	s.items[key] = entry{expiresAt: now.Add(ttl), value: value}
	if s.maxItems > 0 && len(s.items) > s.maxItems {
		// best-effort cap: drop expired entries first, then arbitrary ones
		for k, e := range s.items {
			if now.After(e.expiresAt) {
				delete(s.items, k)
			}
			if len(s.items) <= s.maxItems {
				break
			}
		}
		for k := range s.items {
			if len(s.items) <= s.maxItems {
				break
			}
			delete(s.items, k)
		}
	}
	s.mu.Unlock()
}

// Delete removes the entry under key, expired or not.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet evicted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
