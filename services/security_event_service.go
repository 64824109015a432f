package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
)

// SecurityEventService appends immutable audit records. Every interesting
// state transition (login, session change, lockout, block) goes through
// here. Failure to write an event is logged but never blocks the caller,
// forensics must not become an availability dependency.
type SecurityEventService struct {
	db *gorm.DB
}

// NewSecurityEventService creates a new security event service
func NewSecurityEventService(db *gorm.DB) *SecurityEventService {
	return &SecurityEventService{db: db}
}

// Record inserts one audit row. userID may be nil for pre-authentication
// events (failed logins for unknown accounts, IP blocks).
func (s *SecurityEventService) Record(ctx context.Context, userID *uint, eventType model.SecurityEventType, ip string, metadata map[string]interface{}) {
	event := model.SecurityEvent{
		UserID:    userID,
		EventType: eventType,
		IPAddress: ip,
	}

	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			log.Printf("[AUDIT] failed to encode metadata for %s: %v", eventType, err)
		} else {
			event.Metadata = raw
		}
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Printf("[AUDIT] failed to record %s event: %v", eventType, err)
	}
}

// ListForUser returns a user's recent events, newest first
func (s *SecurityEventService) ListForUser(ctx context.Context, userID uint, limit int) ([]model.SecurityEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var events []model.SecurityEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// CleanupOldEvents prunes events older than the retention window
func (s *SecurityEventService) CleanupOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", time.Now().Add(-retention)).
		Delete(&model.SecurityEvent{})
	return res.RowsAffected, res.Error
}
