package model

import (
	"time"

	"gorm.io/datatypes"
)

// SecurityEventType classifies audit log entries
type SecurityEventType string

const (
	EventLoginSuccess       SecurityEventType = "login_success"
	EventLoginFailed        SecurityEventType = "login_failed"
	EventSessionCreated     SecurityEventType = "session_created"
	EventSessionRevoked     SecurityEventType = "session_revoked"
	EventTokenRefreshed     SecurityEventType = "token_refreshed"
	EventTokenBlacklisted   SecurityEventType = "token_blacklisted"
	EventSuspiciousActivity SecurityEventType = "suspicious_activity"
	EventLockoutTriggered   SecurityEventType = "lockout_triggered"
	EventLockoutReset       SecurityEventType = "lockout_reset"
	EventAccountLocked      SecurityEventType = "account_locked"
	EventAccountUnlocked    SecurityEventType = "account_unlocked"
	EventIPBlocked          SecurityEventType = "ip_blocked"
	EventIPUnblocked        SecurityEventType = "ip_unblocked"
	EventPasswordChanged    SecurityEventType = "password_changed"
)

// SecurityEvent is an append-only audit record. Rows are only ever inserted
// and eventually pruned by age; they are never updated.
type SecurityEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    *uint             `gorm:"index" json:"user_id,omitempty"`
	EventType SecurityEventType `gorm:"type:varchar(50);not null;index" json:"event_type"`
	IPAddress string            `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	Metadata  datatypes.JSON    `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for SecurityEvent
func (SecurityEvent) TableName() string {
	return "security_events"
}
