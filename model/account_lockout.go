package model

import (
	"time"
)

// AccountLockout tracks failed login attempts per identifier (an email or an
// IP) with a sliding reset window. A permanent admin lock uses the same row
// with IsPermanent set; the sliding window never clears those.
type AccountLockout struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Identifier     string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"identifier"`
	FailedAttempts int        `gorm:"default:0" json:"failed_attempts"`
	FirstFailureAt time.Time  `gorm:"not null" json:"first_failure_at"`
	LastFailureAt  time.Time  `gorm:"not null" json:"last_failure_at"`
	LockedUntil    *time.Time `gorm:"index" json:"locked_until"`
	IsPermanent    bool       `gorm:"default:false" json:"is_permanent"`
	LockReason     string     `gorm:"type:varchar(100)" json:"lock_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for AccountLockout
func (AccountLockout) TableName() string {
	return "account_lockouts"
}

// IsLocked reports whether the lockout is currently in effect.
func (l *AccountLockout) IsLocked(now time.Time) bool {
	return l.LockedUntil != nil && l.LockedUntil.After(now)
}
