package service

import (
	"context"
	"errors"

	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/repository"
	"otp-auth-backend/internal/security"
)

// AuthService is the orchestration layer behind the HTTP handlers: it
// resolves identity against the credential store and delegates to the OTP
// manager and token service.
type AuthService struct {
	users  repository.UserRepository
	otp    *OTPService
	tokens *TokenService
}

func NewAuthService(users repository.UserRepository, otp *OTPService, tokens *TokenService) *AuthService {
	return &AuthService{users: users, otp: otp, tokens: tokens}
}

type UserDetail struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type LoginResult struct {
	UserDetail UserDetail `json:"user_detail"`
	Token      TokenPair  `json:"token"`
}

func (s *AuthService) PasswordLogin(ctx context.Context, email, password, ua, ip string) (*LoginResult, error) {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if err := NewMissingFieldsError(missing...); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	// Inactive users fail the credential check the same way a wrong
	// password does; the response must not reveal account state.
	if !user.IsActive || !security.CheckPassword(user.PasswordHash, password) {
		return nil, ErrIncorrectCredentials
	}
	return s.login(ctx, user, ua, ip)
}

func (s *AuthService) RequestOTP(ctx context.Context, email string) (*OTPRequestResult, error) {
	if email == "" {
		return nil, NewMissingFieldsError("email")
	}
	return s.otp.RequestCode(ctx, email)
}

func (s *AuthService) OTPLogin(ctx context.Context, email, code, ua, ip string) (*LoginResult, error) {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if code == "" {
		missing = append(missing, "otp")
	}
	if err := NewMissingFieldsError(missing...); err != nil {
		return nil, err
	}

	user, err := s.otp.VerifyCode(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return s.login(ctx, user, ua, ip)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken, ua, ip string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, NewMissingFieldsError("refresh")
	}
	return s.tokens.Refresh(ctx, refreshToken, ua, ip)
}

func (s *AuthService) VerifyToken(raw string) (*security.Claims, error) {
	if raw == "" {
		return nil, NewMissingFieldsError("token")
	}
	return s.tokens.Verify(raw)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return NewMissingFieldsError("refresh_token")
	}
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	return s.tokens.RevokeAll(ctx, userID)
}

func (s *AuthService) login(ctx context.Context, user *domain.User, ua, ip string) (*LoginResult, error) {
	pair, err := s.tokens.IssuePair(ctx, user, ua, ip)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		UserDetail: UserDetail{UserID: user.ID, Email: user.Email, Name: user.FullName()},
		Token:      *pair,
	}, nil
}
