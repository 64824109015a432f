package model

import (
	"time"
)

// RefreshToken stores the SHA-256 hash of an opaque refresh secret. The raw
// secret only ever exists in the client cookie; lookups hash the presented
// value first. At most one non-revoked token exists per (user, device).
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TokenHash string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	UserID    uint      `gorm:"not null;index:idx_refresh_user_device" json:"user_id"`
	DeviceID  string    `gorm:"type:varchar(32);not null;index:idx_refresh_user_device" json:"device_id"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	IsRevoked bool      `gorm:"default:false" json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for RefreshToken
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
