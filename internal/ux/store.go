// Package ux holds short-lived state for paged, button-driven screens.
//
// Everything here is process-local; a restart drops all sessions and the
// user has to run the slash command again.
package ux

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyLen keeps keys short enough to embed in a custom id next to an intent
// tag and an item id.
const KeyLen = 10

// sweep expired entries every this many puts
const sweepEvery = 256

var ErrNotFound = errors.New("ux session expired or not found")

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Store maps short random keys to values with a sliding TTL. It is safe for
// concurrent use.
type Store[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[T]
	puts    int
}

// NewStore returns a store whose entries live for ttl after the last
// Put/Update/Touch. now defaults to time.Now.
func NewStore[T any](ttl time.Duration, now func() time.Time) *Store[T] {
	if now == nil {
		now = time.Now
	}
	return &Store[T]{ttl: ttl, now: now, entries: make(map[string]entry[T])}
}

// Put stores v under a fresh key.
func (s *Store[T]) Put(v T) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.puts++
	if s.puts >= sweepEvery {
		s.sweepLocked(now)
		s.puts = 0
	}

	key := newKey()
	for _, taken := s.entries[key]; taken; _, taken = s.entries[key] {
		key = newKey()
	}
	s.entries[key] = entry[T]{value: v, expiresAt: now.Add(s.ttl)}
	return key
}

// Get returns the value for key, or ErrNotFound once the TTL has lapsed.
func (s *Store[T]) Get(key string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(key)
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Update replaces the value with fn(current) and refreshes the TTL.
// fn is not called for a missing or expired key.
func (s *Store[T]) Update(key string, fn func(T) T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(key)
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	next := fn(e.value)
	s.entries[key] = entry[T]{value: next, expiresAt: s.now().Add(s.ttl)}
	return next, nil
}

// Touch extends a live entry to now+ttl and reports whether it was live.
func (s *Store[T]) Touch(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(key)
	if !ok {
		return false
	}
	e.expiresAt = s.now().Add(s.ttl)
	s.entries[key] = e
	return true
}

func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet evicted.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// liveLocked evicts key if it has expired.
func (s *Store[T]) liveLocked(key string) (entry[T], bool) {
	e, ok := s.entries[key]
	if !ok {
		return e, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return e, false
	}
	return e, true
}

func (s *Store[T]) sweepLocked(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:KeyLen]
}
