package service

import (
	"context"
	"sync"
	"time"
)

// EmailShield remembers addresses that recently failed the user lookup so a
// flood of OTP requests for unknown emails never reaches the database. Stale
// entries only delay a freshly registered user by the TTL, so keep it short.
type EmailShield interface {
	IsUnknown(ctx context.Context, email string) (bool, error)
	MarkUnknown(ctx context.Context, email string, ttl time.Duration) error
	Forget(ctx context.Context, email string) error
}

type NoopEmailShield struct{}

func NewNoopEmailShield() *NoopEmailShield { return &NoopEmailShield{} }

func (NoopEmailShield) IsUnknown(context.Context, string) (bool, error) { return false, nil }

func (NoopEmailShield) MarkUnknown(context.Context, string, time.Duration) error { return nil }

func (NoopEmailShield) Forget(context.Context, string) error { return nil }

type InMemoryEmailShield struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewInMemoryEmailShield() *InMemoryEmailShield {
	return &InMemoryEmailShield{entries: make(map[string]time.Time)}
}

func (s *InMemoryEmailShield) IsUnknown(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.entries[email]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(s.entries, email)
		return false, nil
	}
	return true, nil
}

func (s *InMemoryEmailShield) MarkUnknown(_ context.Context, email string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[email] = time.Now().Add(ttl)
	return nil
}

func (s *InMemoryEmailShield) Forget(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	return nil
}
