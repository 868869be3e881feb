package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationSet records session token ids invalidated before their natural
// expiry. Every validate call consults it: a token whose signature still
// verifies must be rejected once its id is in the set.
type RevocationSet interface {
	Insert(ctx context.Context, tokenID string, ttl time.Duration) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationSet backs the set with a shared Redis instance so revocation
// stays visible across worker processes. Entries expire with the token they
// revoke.
type RedisRevocationSet struct {
	client *redis.Client
}

func NewRedisRevocationSet(client *redis.Client) *RedisRevocationSet {
	return &RedisRevocationSet{client: client}
}

func (s *RedisRevocationSet) Insert(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revocationKey(tokenID), "1", ttl).Err()
}

func (s *RedisRevocationSet) Contains(ctx context.Context, tokenID string) (bool, error) {
	_, err := s.client.Get(ctx, revocationKey(tokenID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func revocationKey(tokenID string) string {
	return fmt.Sprintf("revoked_token:%s", tokenID)
}

// MemoryRevocationSet is a process-local fallback for single-node deployments
// and tests.
type MemoryRevocationSet struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryRevocationSet() *MemoryRevocationSet {
	return &MemoryRevocationSet{revoked: make(map[string]time.Time)}
}

func (s *MemoryRevocationSet) Insert(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = time.Now().UTC().Add(ttl)
	return nil
}

func (s *MemoryRevocationSet) Contains(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(expiresAt) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
