package domain

import (
	"strings"
	"time"
)

// User is the credential-store record this service authenticates against.
// Soft deletion is an explicit IsActive/DeletedAt pair; callers flip it
// through Deactivate/Reactivate rather than save-time hooks.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName    string     `gorm:"size:100" json:"first_name"`
	LastName     string     `gorm:"size:100" json:"last_name"`
	PasswordHash string     `gorm:"size:128;not null" json:"-"`
	Document     string     `gorm:"size:50" json:"document,omitempty"`
	CodePhone    string     `gorm:"size:10" json:"code_phone,omitempty"`
	PhoneNumber  string     `gorm:"size:50" json:"phone_number,omitempty"`
	IsAdmin      bool       `gorm:"default:false" json:"is_admin"`
	IsActive     bool       `gorm:"default:true;index" json:"is_active"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lowercases and trims an address so lookups and the unique
// index agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
