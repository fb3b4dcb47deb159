package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when a reset token is unknown, expired or already used.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore keeps short-lived server-side token state: password reset tokens and the
// ids of identity tokens revoked by sign-out.
type TokenStore interface {
	SaveResetToken(ctx context.Context, token, userID string, ttl time.Duration) error
	// TakeResetToken returns the user of token and deletes it in the same step.
	TakeResetToken(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

func resetTokenKey(token string) string { return "schoolmaps:reset:" + token }

func revokedKey(tokenID string) string { return "schoolmaps:revoked:" + tokenID }

type redisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore returns a TokenStore on redis keys with TTLs.
func NewRedisTokenStore(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client}
}

func (s *redisTokenStore) SaveResetToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, resetTokenKey(token), userID, ttl).Err()
}

func (s *redisTokenStore) TakeResetToken(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, resetTokenKey(token)).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("take reset token: %w", err)
	}
	return userID, nil
}

func (s *redisTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err()
}

func (s *redisTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryTokenStore is a process-local TokenStore used when no redis is configured.
type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryTokenStore) set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{value: value, expires: now.Add(ttl)}
}

func (s *MemoryTokenStore) get(key string, del bool) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if del || s.now().After(e.expires) {
		delete(s.entries, key)
	}
	if s.now().After(e.expires) {
		return "", false
	}
	return e.value, true
}

func (s *MemoryTokenStore) SaveResetToken(_ context.Context, token, userID string, ttl time.Duration) error {
	s.set(resetTokenKey(token), userID, ttl)
	return nil
}

func (s *MemoryTokenStore) TakeResetToken(_ context.Context, token string) (string, error) {
	userID, ok := s.get(resetTokenKey(token), true)
	if !ok {
		return "", ErrTokenNotFound
	}
	return userID, nil
}

func (s *MemoryTokenStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl > 0 {
		s.set(revokedKey(tokenID), "1", ttl)
	}
	return nil
}

func (s *MemoryTokenStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := s.get(revokedKey(tokenID), false)
	return ok, nil
}
