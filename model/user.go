package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered creator account
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Role         string         `gorm:"type:varchar(20);default:'creator'" json:"role"` // creator, admin

	// Bulk-revocation markers. Any access token issued before
	// TokensInvalidAfter is rejected regardless of the blacklist.
	TokenVersion       int        `gorm:"default:0" json:"-"`
	TokensInvalidAfter *time.Time `json:"-"`

	// Relationships
	Sessions       []UserSession      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	RefreshTokens  []RefreshToken     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []BlacklistedToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "user_profiles"
}
