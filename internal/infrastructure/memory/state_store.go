package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/grepdeck/authgate/internal/application/authn"
)

// ErrStateNotFound mirrors the Redis store's failure for unknown, expired or
// already consumed tokens.
var ErrStateNotFound = errors.New("sign-in state not found or expired")

// StateStore is the single-process fallback when Redis is not configured.
// Sign-in state held here does not survive restarts and is invisible to
// other replicas.
type StateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]stateEntry
}

type stateEntry struct {
	data      authn.StateData
	expiresAt time.Time
}

func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{
		ttl:     ttl,
		entries: make(map[string]stateEntry),
	}
}

func (s *StateStore) Create(_ context.Context, state authn.StateData) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// opportunistic cleanup of expired entries
	now := time.Now()
	for k, v := range s.entries {
		if now.After(v.expiresAt) {
			delete(s.entries, k)
		}
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	s.entries[token] = stateEntry{
		data:      state,
		expiresAt: now.Add(s.ttl),
	}
	return token, nil
}

func (s *StateStore) Consume(_ context.Context, token string) (authn.StateData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	delete(s.entries, token)
	if !ok || time.Now().After(entry.expiresAt) {
		return authn.StateData{}, ErrStateNotFound
	}
	return entry.data, nil
}
