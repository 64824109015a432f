package model

import (
	"time"

	"gorm.io/datatypes"
)

// AdminAuditLog represents audit trail for admin actions
type AdminAuditLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AdminID     uint           `gorm:"not null;index" json:"admin_id"`
	Action      string         `gorm:"type:varchar(100);not null" json:"action"` // e.g., "account_lock", "ip_block"
	Resource    string         `gorm:"type:varchar(100)" json:"resource"`        // e.g., "account_lockouts", "ip_rate_limits"
	ResourceKey string         `gorm:"type:varchar(255)" json:"resource_key"`    // natural key: email or IP
	Details     datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	IPAddress   string         `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent   string         `gorm:"type:text" json:"user_agent"`
	CreatedAt   time.Time      `json:"created_at"`

	// Relationships
	Admin User `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"admin,omitempty"`
}

// TableName specifies the table name for AdminAuditLog
func (AdminAuditLog) TableName() string {
	return "admin_audit_logs"
}
