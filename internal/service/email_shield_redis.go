package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"otp-auth-backend/internal/domain"
)

// RedisEmailShield shares the unknown-email set across replicas. Addresses
// are stored hashed, never in the clear.
type RedisEmailShield struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisEmailShield(client redis.UniversalClient, prefix string) *RedisEmailShield {
	if prefix == "" {
		prefix = "email_shield"
	}
	return &RedisEmailShield{client: client, prefix: prefix}
}

func (s *RedisEmailShield) IsUnknown(ctx context.Context, email string) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	_, err := s.client.Get(ctx, s.key(email)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisEmailShield) MarkUnknown(ctx context.Context, email string, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(email), "1", ttl).Err()
}

func (s *RedisEmailShield) Forget(ctx context.Context, email string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key(email)).Err()
}

func (s *RedisEmailShield) key(email string) string {
	sum := sha256.Sum256([]byte(domain.NormalizeEmail(email)))
	return fmt.Sprintf("%s:%s", s.prefix, hex.EncodeToString(sum[:]))
}
