package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/notify"
	"otp-auth-backend/internal/observability"
	"otp-auth-backend/internal/repository"
)

// OTPService owns the one-time code lifecycle: issue, deliver, verify,
// consume. Codes are single-use; issuing a new code does not invalidate
// codes issued earlier, so several may be outstanding at once.
type OTPService struct {
	users           repository.UserRepository
	codes           repository.OTPRepository
	email           notify.EmailSender
	sms             notify.SMSSender
	shield          EmailShield
	shieldTTL       time.Duration
	appName         string
	validityMinutes int
	notifyTimeout   time.Duration
	now             func() time.Time
}

type OTPServiceOption func(*OTPService)

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) OTPServiceOption {
	return func(s *OTPService) { s.now = now }
}

// WithSMSSender enables SMS delivery alongside email for users that have a
// phone number on record.
func WithSMSSender(sms notify.SMSSender) OTPServiceOption {
	return func(s *OTPService) { s.sms = sms }
}

// WithEmailShield short-circuits lookups for addresses that recently missed,
// keeping unknown-email floods off the database.
func WithEmailShield(shield EmailShield, ttl time.Duration) OTPServiceOption {
	return func(s *OTPService) {
		s.shield = shield
		s.shieldTTL = ttl
	}
}

func NewOTPService(users repository.UserRepository, codes repository.OTPRepository, email notify.EmailSender, appName string, validityMinutes int, notifyTimeout time.Duration, opts ...OTPServiceOption) *OTPService {
	if validityMinutes <= 0 {
		validityMinutes = domain.DefaultOTPValidityMinutes
	}
	s := &OTPService{
		users:           users,
		codes:           codes,
		email:           email,
		appName:         appName,
		validityMinutes: validityMinutes,
		notifyTimeout:   notifyTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OTPRequestResult carries the issued code plus a non-fatal delivery warning
// when the notification transport failed. The code row exists either way.
type OTPRequestResult struct {
	Code            *domain.OTPCode
	DeliveryWarning error
}

func (s *OTPService) RequestCode(ctx context.Context, email string) (*OTPRequestResult, error) {
	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return nil, err
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp code: %w", err)
	}

	row := &domain.OTPCode{
		UserID:          user.ID,
		Code:            code,
		ValidityMinutes: s.validityMinutes,
		IsActive:        true,
	}
	if err := s.codes.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("persist otp code: %w", err)
	}

	result := &OTPRequestResult{Code: row}
	if warn := s.deliver(ctx, user, code); warn != nil {
		// Delivery failure must not fail the issuing flow; the code row
		// already exists and stays valid.
		slog.WarnContext(ctx, "otp email delivery failed",
			"user_id", user.ID, "error", warn.Error())
		observability.RecordNotifyDelivery(ctx, "email", "failure")
		result.DeliveryWarning = warn
		return result, nil
	}
	observability.RecordNotifyDelivery(ctx, "email", "success")

	if s.sms != nil && user.PhoneNumber != "" {
		if warn := s.deliverSMS(ctx, user, code); warn != nil {
			slog.WarnContext(ctx, "otp sms delivery failed",
				"user_id", user.ID, "error", warn.Error())
			observability.RecordNotifyDelivery(ctx, "sms", "failure")
		} else {
			observability.RecordNotifyDelivery(ctx, "sms", "success")
		}
	}
	return result, nil
}

func (s *OTPService) VerifyCode(ctx context.Context, email, code string) (*domain.User, error) {
	user, err := s.resolveUser(ctx, email)
	if err != nil {
		return nil, err
	}

	row, err := s.codes.FindLatestByUserAndCode(ctx, user.ID, code)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if row.IsExpired(s.now()) {
		return nil, ErrCodeExpired
	}
	if !row.IsActive {
		return nil, ErrCodeAlreadyUsed
	}

	consumed, err := s.codes.Consume(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// A concurrent request won the conditional update.
		return nil, ErrCodeAlreadyUsed
	}
	return user, nil
}

func (s *OTPService) resolveUser(ctx context.Context, email string) (*domain.User, error) {
	if s.shield != nil {
		unknown, shieldErr := s.shield.IsUnknown(ctx, email)
		if shieldErr != nil {
			// A broken shield backend degrades to a plain lookup.
			slog.WarnContext(ctx, "email shield lookup failed", "error", shieldErr.Error())
		} else if unknown {
			return nil, ErrEmailNotFound
		}
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if s.shield != nil {
				if shieldErr := s.shield.MarkUnknown(ctx, email, s.shieldTTL); shieldErr != nil {
					slog.WarnContext(ctx, "email shield mark failed", "error", shieldErr.Error())
				}
			}
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (s *OTPService) deliver(ctx context.Context, user *domain.User, code string) error {
	subject, html, err := notify.RenderOTPEmail(s.appName, user.FirstName, code, s.validityMinutes)
	if err != nil {
		return err
	}
	sendCtx := ctx
	if s.notifyTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
	}
	return s.email.Send(sendCtx, subject, html, []notify.Recipient{{Email: user.Email, Name: user.FirstName}})
}

func (s *OTPService) deliverSMS(ctx context.Context, user *domain.User, code string) error {
	sendCtx := ctx
	if s.notifyTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
	}
	message := fmt.Sprintf("%s login code: %s. It expires in %d minutes.", s.appName, code, s.validityMinutes)
	return s.sms.Send(sendCtx, user.CodePhone+user.PhoneNumber, message)
}

var otpCodeRange = big.NewInt(900000)

// GenerateCode draws a uniformly random 6-digit code in [100000, 999999]
// from the OS entropy source.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeRange)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
