package model

import (
	"time"
)

// UserSession represents one authenticated device for a user. A device is
// identified by a low-entropy fingerprint hash, so a user logging in twice
// from the same browser updates the existing row instead of adding another.
type UserSession struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_user_device" json:"user_id"`
	Email        string    `gorm:"not null" json:"email"`
	Role         string    `gorm:"type:varchar(20)" json:"role"`
	DeviceID     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_user_device" json:"device_id"`
	IPAddress    string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent    string    `gorm:"type:text" json:"user_agent"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `gorm:"index;not null" json:"last_activity"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for UserSession
func (UserSession) TableName() string {
	return "user_sessions"
}
