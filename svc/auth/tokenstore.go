package auth

import (
	"context"
	"sync"
	"time"
)

// TokenStore tracks live refresh-token IDs so each refresh token can be
// redeemed exactly once. Rotation consumes the old ID and registers the
// replacement.
type TokenStore interface {
	// Save registers a refresh-token ID for the user with a TTL.
	Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error

	// Take atomically consumes a refresh-token ID, reporting whether it was
	// live. A second Take of the same ID reports false.
	Take(ctx context.Context, tokenID string) (bool, error)
}

// MemoryTokenStore is an in-process TokenStore for tests and single-node
// development runs.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

// NewMemoryTokenStore returns an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]time.Time)}
}

// Save registers the token ID until its TTL elapses.
func (s *MemoryTokenStore) Save(_ context.Context, tokenID, _ string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenID] = time.Now().Add(ttl)
	return nil
}

// Take consumes the token ID if it is live.
func (s *MemoryTokenStore) Take(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[tokenID]
	if !ok {
		return false, nil
	}
	delete(s.tokens, tokenID)
	return time.Now().Before(expiry), nil
}
