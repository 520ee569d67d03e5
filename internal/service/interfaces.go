package service

import (
	"context"

	"otp-auth-backend/internal/security"
)

// AuthGateway is what the HTTP layer depends on; handler tests substitute a
// fake implementation.
type AuthGateway interface {
	PasswordLogin(ctx context.Context, email, password, ua, ip string) (*LoginResult, error)
	RequestOTP(ctx context.Context, email string) (*OTPRequestResult, error)
	OTPLogin(ctx context.Context, email, code, ua, ip string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken, ua, ip string) (*RefreshResult, error)
	VerifyToken(raw string) (*security.Claims, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uint) (int64, error)
}

var _ AuthGateway = (*AuthService)(nil)
