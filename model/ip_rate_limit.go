package model

import (
	"time"
)

// EndpointClassManual marks rows created by an admin block rather than the
// automatic fixed-window counters.
const EndpointClassManual = "manual"

// IPRateLimit is a fixed-window request counter for one (ip, endpoint class)
// pair. Once RequestCount exceeds the class limit, BlockedUntil is set to a
// full block period from the moment of violation, not from WindowStart.
type IPRateLimit struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	IPAddress     string     `gorm:"type:varchar(45);not null;uniqueIndex:idx_ip_endpoint" json:"ip_address"`
	EndpointClass string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_ip_endpoint" json:"endpoint_class"`
	RequestCount  int        `gorm:"default:0" json:"request_count"`
	WindowStart   time.Time  `gorm:"not null" json:"window_start"`
	BlockedUntil  *time.Time `gorm:"index" json:"blocked_until"`
	FirstRequest  time.Time  `gorm:"not null" json:"first_request"`
	LastRequest   time.Time  `gorm:"index;not null" json:"last_request"`
	UserAgent     string     `gorm:"type:text" json:"user_agent"`
}

// TableName specifies the table name for IPRateLimit
func (IPRateLimit) TableName() string {
	return "ip_rate_limits"
}

// IsBlocked reports whether the record carries an active block.
func (r *IPRateLimit) IsBlocked(now time.Time) bool {
	return r.BlockedUntil != nil && r.BlockedUntil.After(now)
}
