package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/observability"
)

var ErrOTPNotFound = errors.New("otp code not found")

type OTPRepository interface {
	Create(ctx context.Context, code *domain.OTPCode) error
	// FindLatestByUserAndCode returns the most recently issued row matching
	// (user, code), active or not. Multiple outstanding codes per user are
	// allowed, so the newest one wins.
	FindLatestByUserAndCode(ctx context.Context, userID uint, code string) (*domain.OTPCode, error)
	// Consume flips is_active true->false for the given row. It reports
	// false when another request already consumed the code; the conditional
	// update is what makes concurrent verification single-winner.
	Consume(ctx context.Context, id uint) (bool, error)
}

type GormOTPRepository struct{ db *gorm.DB }

func NewOTPRepository(db *gorm.DB) OTPRepository { return &GormOTPRepository{db: db} }

func (r *GormOTPRepository) Create(ctx context.Context, code *domain.OTPCode) error {
	err := r.db.WithContext(ctx).Create(code).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "otp", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "otp", "create", "success")
	return nil
}

func (r *GormOTPRepository) FindLatestByUserAndCode(ctx context.Context, userID uint, code string) (*domain.OTPCode, error) {
	var row domain.OTPCode
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND code = ?", userID, code).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "otp", "find_latest", "not_found")
			return nil, ErrOTPNotFound
		}
		observability.RecordRepositoryOperation(ctx, "otp", "find_latest", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "otp", "find_latest", "success")
	return &row, nil
}

func (r *GormOTPRepository) Consume(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.OTPCode{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "otp", "consume", "error")
		return false, res.Error
	}
	outcome := "success"
	if res.RowsAffected == 0 {
		outcome = "already_consumed"
	}
	observability.RecordRepositoryOperation(ctx, "otp", "consume", outcome)
	return res.RowsAffected > 0, nil
}
