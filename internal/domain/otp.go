package domain

import "time"

const (
	// OTPCodeLength is the number of digits in a generated code.
	OTPCodeLength = 6
	// DefaultOTPValidityMinutes bounds how long a code may be used after issue.
	DefaultOTPValidityMinutes = 10
)

// OTPCode is a single-use login code. Rows are never deleted; a consumed or
// superseded code is kept with IsActive=false for audit.
type OTPCode struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	Code            string    `gorm:"size:6;index;not null" json:"-"`
	ValidityMinutes int       `gorm:"default:10;not null" json:"validity_minutes"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (o *OTPCode) TableName() string { return "otp_codes" }

func (o *OTPCode) ExpiresAt() time.Time {
	return o.CreatedAt.Add(time.Duration(o.ValidityMinutes) * time.Minute)
}

func (o *OTPCode) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt())
}
