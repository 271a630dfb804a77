package domain

import "time"

// User is the account aggregate. Single-use secrets (verification token,
// login code) are stored hashed and cleared in the same statement that
// consumes them, so a consumed secret can never match again.
type User struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	Name               string       `gorm:"size:255;not null" json:"name"`
	Email              string       `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash       string       `gorm:"size:128;not null" json:"-"`
	IsVerified         bool         `gorm:"not null;default:false" json:"is_verified"`
	VerifyTokenHash    *string      `gorm:"size:128;index" json:"-"`
	VerifyExpiresAt    *time.Time   `json:"-"`
	LoginCodeHash      *string      `gorm:"size:128" json:"-"`
	LoginCodeExpiresAt *time.Time   `json:"-"`
	Subscription       Subscription `gorm:"embedded;embeddedPrefix:subscription_" json:"subscription"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
