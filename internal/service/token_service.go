package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/repository"
	"otp-auth-backend/internal/security"
)

// TokenService mints and verifies the signed token pair and keeps the
// outstanding-refresh-token ledger. Revocation only ever touches refresh
// tokens; an access token stays valid until its natural expiry.
type TokenService struct {
	jwtMgr     *security.JWTManager
	sessions   repository.SessionRepository
	users      repository.UserRepository
	pepper     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	rotate     bool
}

func NewTokenService(jwtMgr *security.JWTManager, sessions repository.SessionRepository, users repository.UserRepository, pepper string, accessTTL, refreshTTL time.Duration, rotate bool) *TokenService {
	return &TokenService{
		jwtMgr:     jwtMgr,
		sessions:   sessions,
		users:      users,
		pepper:     pepper,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rotate:     rotate,
	}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshResult carries the new access token and, when rotation is enabled,
// the replacement refresh token.
type RefreshResult struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh,omitempty"`
}

func (s *TokenService) IssuePair(ctx context.Context, user *domain.User, ua, ip string) (*TokenPair, error) {
	access, err := s.jwtMgr.SignAccessToken(user.ID, user.Email, user.FullName(), s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.jwtMgr.SignRefreshToken(user.ID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	claims, err := s.jwtMgr.ParseRefreshToken(refresh)
	if err != nil {
		return nil, fmt.Errorf("parse freshly signed refresh token: %w", err)
	}
	tokenID := claims.ID
	if err := s.sessions.Create(ctx, &domain.Session{
		UserID:           user.ID,
		RefreshTokenHash: security.HashRefreshToken(refresh, s.pepper),
		TokenID:          &tokenID,
		UserAgent:        ua,
		IP:               ip,
		ExpiresAt:        time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, fmt.Errorf("record outstanding token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) Refresh(ctx context.Context, refreshToken, ua, ip string) (*RefreshResult, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, classifyParseError(err)
	}
	session, err := s.sessions.FindByHash(ctx, security.HashRefreshToken(refreshToken, s.pepper))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	userID, err := security.UserIDFromSubject(claims.Subject)
	if err != nil || session.UserID != userID {
		return nil, ErrInvalidToken
	}
	if session.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	if session.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	if !s.rotate {
		access, err := s.jwtMgr.SignAccessToken(user.ID, user.Email, user.FullName(), s.accessTTL)
		if err != nil {
			return nil, fmt.Errorf("sign access token: %w", err)
		}
		return &RefreshResult{AccessToken: access}, nil
	}

	pair, err := s.IssuePair(ctx, user, ua, ip)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.RevokeByHash(ctx, session.RefreshTokenHash, "rotated"); err != nil {
		return nil, err
	}
	return &RefreshResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	if _, err := s.jwtMgr.ParseRefreshToken(refreshToken); err != nil {
		return classifyParseError(err)
	}
	hash := security.HashRefreshToken(refreshToken, s.pepper)
	session, err := s.sessions.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	if session.RevokedAt != nil {
		return ErrTokenAlreadyRevoked
	}
	changed, err := s.sessions.RevokeByHash(ctx, hash, "logout")
	if err != nil {
		return err
	}
	if !changed {
		// Lost the race with a concurrent revocation.
		return ErrTokenAlreadyRevoked
	}
	return nil
}

func (s *TokenService) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	live, err := s.sessions.ListActiveByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(live) == 0 {
		return 0, ErrNoActiveSessions
	}
	count, err := s.sessions.RevokeByUserID(ctx, userID, "logout_all")
	if err != nil {
		return count, err
	}
	return count, nil
}

// Verify checks an access token's signature and expiry. It does not consult
// the ledger: only refresh tokens are revocable.
func (s *TokenService) Verify(raw string) (*security.Claims, error) {
	claims, err := s.jwtMgr.ParseAccessToken(raw)
	if err != nil {
		return nil, classifyParseError(err)
	}
	return claims, nil
}

func classifyParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
