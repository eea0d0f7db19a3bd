// Package ratelimit implements a small fixed-window limiter persisted
// to disk, used to throttle login attempts per client IP and username.
package ratelimit

import (
	"sync"
	"time"

	"wolweb/internal/fsatomic"
)

type bucket struct {
	Hits        int       `json:"hits"`
	WindowStart time.Time `json:"window_start"`
}

type state struct {
	Version int               `json:"version"`
	Buckets map[string]bucket `json:"buckets"`
}

// Store keeps one fixed-window bucket per key. Persistence is best
// effort: a corrupt or missing file starts the limiter empty.
type Store struct {
	path string
	mu   sync.Mutex
	st   state
	ops  int
	last time.Time
}

func New(path string) *Store {
	s := &Store{path: path, st: state{Version: 1, Buckets: map[string]bucket{}}}
	var st state
	if ok, err := fsatomic.LoadJSON(path, &st); err == nil && ok && st.Version == 1 && st.Buckets != nil {
		s.st = st
	}
	return s
}

// Allow records a hit for key and reports whether it stays within limit
// for the window, along with when the window resets.
func (s *Store) Allow(key string, limit int, window time.Duration) (ok bool, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	b := s.st.Buckets[key]
	if b.WindowStart.IsZero() || now.Sub(b.WindowStart) >= window {
		b = bucket{WindowStart: now}
	}
	resetAt = b.WindowStart.Add(window)
	if b.Hits >= limit {
		s.maybePersistLocked()
		return false, resetAt
	}
	b.Hits++
	s.st.Buckets[key] = b
	s.maybePersistLocked()
	return true, resetAt
}

// Reset clears the bucket for key, e.g. after a successful login.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.Buckets, key)
	s.maybePersistLocked()
}

// Flush forces a persist to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// maybePersistLocked saves every ~2s or every 10 mutations to bound IO.
func (s *Store) maybePersistLocked() {
	s.ops++
	if s.ops >= 10 || time.Since(s.last) >= 2*time.Second {
		_ = s.persistLocked()
	}
}

func (s *Store) persistLocked() error {
	if err := fsatomic.SaveJSON(s.path, s.st, 0o600); err != nil {
		return err
	}
	s.ops = 0
	s.last = time.Now()
	return nil
}
