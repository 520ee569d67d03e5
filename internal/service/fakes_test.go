package service

import (
	"context"
	"sync"
	"time"

	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/notify"
	"otp-auth-backend/internal/repository"
)

type inMemoryUserRepo struct {
	mu      sync.Mutex
	nextID  uint
	byID    map[uint]*domain.User
	byEmail map[string]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{
		nextID:  1,
		byID:    map[uint]*domain.User{},
		byEmail: map[string]*domain.User{},
	}
}

func (r *inMemoryUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = domain.NormalizeEmail(user.Email)
	cp := *user
	cp.ID = r.nextID
	r.nextID++
	r.byID[cp.ID] = &cp
	r.byEmail[cp.Email] = &cp
	user.ID = cp.ID
	return nil
}

func (r *inMemoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.byID[cp.ID] = &cp
	r.byEmail[cp.Email] = &cp
	return nil
}

func (r *inMemoryUserRepo) Deactivate(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || !u.IsActive {
		return repository.ErrUserNotFound
	}
	now := time.Now().UTC()
	u.IsActive = false
	u.DeletedAt = &now
	return nil
}

func (r *inMemoryUserRepo) Reactivate(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.IsActive {
		return repository.ErrUserNotFound
	}
	u.IsActive = true
	u.DeletedAt = nil
	return nil
}

type inMemoryOTPRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*domain.OTPCode
}

func newInMemoryOTPRepo() *inMemoryOTPRepo {
	return &inMemoryOTPRepo{nextID: 1, rows: map[uint]*domain.OTPCode{}}
}

func (r *inMemoryOTPRepo) Create(_ context.Context, code *domain.OTPCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *code
	cp.ID = r.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.nextID++
	r.rows[cp.ID] = &cp
	*code = cp
	return nil
}

func (r *inMemoryOTPRepo) FindLatestByUserAndCode(_ context.Context, userID uint, code string) (*domain.OTPCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.OTPCode
	for _, row := range r.rows {
		if row.UserID != userID || row.Code != code {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) ||
			(row.CreatedAt.Equal(latest.CreatedAt) && row.ID > latest.ID) {
			latest = row
		}
	}
	if latest == nil {
		return nil, repository.ErrOTPNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *inMemoryOTPRepo) Consume(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !row.IsActive {
		return false, nil
	}
	row.IsActive = false
	return true, nil
}

type inMemorySessionRepo struct {
	mu     sync.Mutex
	nextID uint
	byHash map[string]*domain.Session
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{nextID: 1, byHash: map[string]*domain.Session{}}
}

func (r *inMemorySessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.ID = r.nextID
	r.nextID++
	r.byHash[cp.RefreshTokenHash] = &cp
	*s = cp
	return nil
}

func (r *inMemorySessionRepo) FindByHash(_ context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySessionRepo) ListActiveByUserID(_ context.Context, userID uint) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []domain.Session
	for _, s := range r.byHash {
		if s.UserID == userID && s.Live(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *inMemorySessionRepo) RevokeByHash(_ context.Context, hash, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[hash]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	s.RevokedAt = &now
	s.RevokedReason = &reason
	return true, nil
}

func (r *inMemorySessionRepo) RevokeByUserID(_ context.Context, userID uint, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	for _, s := range r.byHash {
		if s.UserID == userID && s.Live(now) {
			s.RevokedAt = &now
			s.RevokedReason = &reason
			count++
		}
	}
	return count, nil
}

func (r *inMemorySessionRepo) CleanupExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for hash, s := range r.byHash {
		if !s.ExpiresAt.After(cutoff) {
			delete(r.byHash, hash)
			count++
		}
	}
	return count, nil
}

type recordingEmailSender struct {
	mu       sync.Mutex
	sent     []sentEmail
	failWith error
}

type sentEmail struct {
	Subject string
	Body    string
	To      []notify.Recipient
}

func (s *recordingEmailSender) Send(_ context.Context, subject, htmlBody string, to []notify.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.sent = append(s.sent, sentEmail{Subject: subject, Body: htmlBody, To: to})
	return nil
}

func (s *recordingEmailSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
