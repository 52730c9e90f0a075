package models

import "time"

// Admin represents the operator account for the admin surface.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:varchar(255);not null;uniqueIndex"` // Login name.
	Password string `gorm:"type:varchar(255);not null"`             // bcrypt hash.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
