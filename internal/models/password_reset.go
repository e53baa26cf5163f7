package models

import "time"

// PasswordReset stores the bcrypt hash of an outstanding reset token.
type PasswordReset struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Email     string    `gorm:"type:varchar(254);not null;index" json:"email"`
	TokenHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
