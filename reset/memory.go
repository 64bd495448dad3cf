package reset

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal"
)

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore is an in-process reset store guarded by a single mutex.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (s *MemoryStore) Issue(_ context.Context, userID string, ttl time.Duration) (string, error) {
	if err := validateIssue(userID, ttl); err != nil {
		return "", err
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.gcLocked(now)
	s.entries[internal.TokenDigest(token)] = memoryEntry{userID: userID, expiresAt: now.Add(ttl)}
	return token, nil
}

func (s *MemoryStore) Consume(_ context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	key := internal.TokenDigest(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked(s.now())
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, key)
	return e.userID, true, nil
}

func (s *MemoryStore) Peek(_ context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked(s.now())
	e, ok := s.entries[internal.TokenDigest(token)]
	if !ok {
		return "", false, nil
	}
	return e.userID, true, nil
}

// Len returns the number of live and not yet collected entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) gcLocked(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
