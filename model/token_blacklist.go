package model

import (
	"time"
)

// Blacklist reasons. These are persisted, keep values stable.
const (
	BlacklistReasonLogout             = "logout"
	BlacklistReasonPasswordChange     = "password_change"
	BlacklistReasonSuspiciousActivity = "suspicious_activity"
	BlacklistReasonAdminRevoke        = "admin_revoke"
	BlacklistReasonAccountDisabled    = "account_disabled"
	BlacklistReasonSecurityBreach     = "security_breach"
)

// BlacklistedToken stores a one-way hash of a revoked access token. Entries
// are only meaningful until ExpiresAt; after that the token itself has
// expired and the row is garbage collected by the hourly cleanup job.
type BlacklistedToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TokenHash string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Reason    string    `gorm:"type:varchar(50)" json:"reason"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for BlacklistedToken
func (BlacklistedToken) TableName() string {
	return "blacklisted_tokens"
}
