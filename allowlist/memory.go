package allowlist

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore is an in-process allow-list. All operations run under a single
// mutex. Expired entries are swept lazily on access.
type MemoryStore struct {
	mu            sync.Mutex
	entries       map[string]memoryEntry
	now           func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the time source used for expiry decisions.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepInterval throttles the full expiry sweep to at most once per d.
// Individual lookups always honour expiry regardless of the sweep schedule.
// Zero sweeps on every operation.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Allow(_ context.Context, jti, userID string, ttl time.Duration) error {
	if err := validateEntry(jti, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	s.entries[jti] = memoryEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) IsAllowed(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	_, ok := s.liveLocked(jti, now)
	return ok, nil
}

func (s *MemoryStore) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	delete(s.entries, jti)
	return nil
}

func (s *MemoryStore) Redeem(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	if _, ok := s.liveLocked(jti, now); !ok {
		return false, nil
	}
	delete(s.entries, jti)
	return true, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) liveLocked(jti string, now time.Time) (memoryEntry, bool) {
	e, ok := s.entries[jti]
	if !ok {
		return memoryEntry{}, false
	}
	// expiry is inclusive: an entry is dead at its expiry instant
	if !now.Before(e.expiresAt) {
		delete(s.entries, jti)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	if s.sweepInterval > 0 && now.Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.lastSweep = now
	for jti, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, jti)
		}
	}
}
