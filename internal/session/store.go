package session

import (
	"context"
	"sync"
	"time"

	"foodrankr-web/pkg/seal"
)

// TokenStore persists one access token per browser session.
// Get returns "" with a nil error when the session has no token.
type TokenStore interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, token string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

const memorySweepEvery = time.Minute

// MemoryStore keeps tokens in process memory. Expired entries are swept on
// write at most once per minute.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return "", nil
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, sessionID)
		return "", nil
	}
	return e.token, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= memorySweepEvery {
		for k, e := range s.entries {
			if !now.Before(e.expires) {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}
	s.entries[sessionID] = memoryEntry{token: token, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// SealedStore encrypts tokens before handing them to the underlying store.
type SealedStore struct {
	inner TokenStore
	box   *seal.Box
}

func NewSealedStore(inner TokenStore, box *seal.Box) *SealedStore {
	return &SealedStore{inner: inner, box: box}
}

// Get opens the stored value. A value that no longer opens (rotated secret) is
// treated as absent and removed.
func (s *SealedStore) Get(ctx context.Context, sessionID string) (string, error) {
	sealed, err := s.inner.Get(ctx, sessionID)
	if err != nil || sealed == "" {
		return "", err
	}
	token, err := s.box.Open(sealed)
	if err != nil {
		return "", s.inner.Delete(ctx, sessionID)
	}
	return token, nil
}

func (s *SealedStore) Set(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	sealed, err := s.box.Seal(token)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, sessionID, sealed, ttl)
}

func (s *SealedStore) Delete(ctx context.Context, sessionID string) error {
	return s.inner.Delete(ctx, sessionID)
}
