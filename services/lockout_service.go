package services

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/cache"
)

// ErrUserNotFound is returned by the admin lock path for unknown emails
var ErrUserNotFound = errors.New("user not found")

// LockoutConfig holds lockout thresholds, fixed at startup
type LockoutConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	ResetWindow     time.Duration
}

// DefaultLockoutConfig mirrors the documented defaults: 5 attempts,
// 15 minute lockout, 60 minute sliding reset window.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:     5,
		LockoutDuration: 15 * time.Minute,
		ResetWindow:     60 * time.Minute,
	}
}

// LockoutStatus is the outcome of recording or checking failed attempts
type LockoutStatus struct {
	IsLocked            bool       `json:"is_locked"`
	RemainingAttempts   int        `json:"remaining_attempts"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	TotalFailedAttempts int        `json:"total_failed_attempts"`
}

// LockoutService tracks failed logins per identifier with a sliding reset
// window. Store failures never block a login on their own: recording and
// checking both fail open, the tracker is a safety net, not a gate that
// may take the API down. The separate permanent path (LockAccount) is an
// operator action and propagates errors instead.
type LockoutService struct {
	db        *gorm.DB
	events    *SecurityEventService
	sessions  *SessionService
	blacklist *auth.BlacklistService
	locks     *cache.KeyLock
	config    LockoutConfig
}

// NewLockoutService creates a new lockout service. locks may be nil, in
// which case counter updates run unserialized.
func NewLockoutService(db *gorm.DB, events *SecurityEventService, sessions *SessionService, blacklist *auth.BlacklistService, locks *cache.KeyLock, config LockoutConfig) *LockoutService {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = 15 * time.Minute
	}
	if config.ResetWindow <= 0 {
		config.ResetWindow = 60 * time.Minute
	}
	return &LockoutService{
		db:        db,
		events:    events,
		sessions:  sessions,
		blacklist: blacklist,
		locks:     locks,
		config:    config,
	}
}

func (s *LockoutService) unlockedStatus(attempts int) *LockoutStatus {
	remaining := s.config.MaxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	return &LockoutStatus{
		IsLocked:            false,
		RemainingAttempts:   remaining,
		TotalFailedAttempts: attempts,
	}
}

func lockedStatus(record *model.AccountLockout) *LockoutStatus {
	return &LockoutStatus{
		IsLocked:            true,
		RemainingAttempts:   0,
		LockedUntil:         record.LockedUntil,
		TotalFailedAttempts: record.FailedAttempts,
	}
}

// RecordFailedAttempt counts one failed login for the identifier. When the
// last streak started longer than the reset window ago the counter starts
// over at 1; otherwise it increments, and reaching the max triggers a
// timed lockout. Persistence failures are logged and reported as unlocked.
func (s *LockoutService) RecordFailedAttempt(ctx context.Context, identifier string) *LockoutStatus {
	release, _ := s.locks.Acquire(ctx, "lockout:"+identifier)
	defer release()

	now := time.Now()
	db := s.db.WithContext(ctx)

	var record model.AccountLockout
	err := db.Where("identifier = ?", identifier).First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = model.AccountLockout{
			Identifier:     identifier,
			FailedAttempts: 1,
			FirstFailureAt: now,
			LastFailureAt:  now,
		}
		if record.FailedAttempts >= s.config.MaxAttempts {
			until := now.Add(s.config.LockoutDuration)
			record.LockedUntil = &until
		}
		if err := db.Create(&record).Error; err != nil {
			log.Printf("[LOCKOUT] failed to create record for %s, failing open: %v", identifier, err)
			return s.unlockedStatus(0)
		}
	case err != nil:
		log.Printf("[LOCKOUT] failed to load record for %s, failing open: %v", identifier, err)
		return s.unlockedStatus(0)
	default:
		if record.IsPermanent || record.IsLocked(now) {
			return lockedStatus(&record)
		}

		if now.Sub(record.FirstFailureAt) > s.config.ResetWindow {
			// New streak, the old one aged out
			record.FailedAttempts = 1
			record.FirstFailureAt = now
			record.LockedUntil = nil
		} else {
			record.FailedAttempts++
		}
		record.LastFailureAt = now

		if record.FailedAttempts >= s.config.MaxAttempts {
			until := now.Add(s.config.LockoutDuration)
			record.LockedUntil = &until
		}

		if err := db.Model(&model.AccountLockout{}).
			Where("identifier = ?", identifier).
			Updates(map[string]interface{}{
				"failed_attempts":  record.FailedAttempts,
				"first_failure_at": record.FirstFailureAt,
				"last_failure_at":  record.LastFailureAt,
				"locked_until":     record.LockedUntil,
			}).Error; err != nil {
			log.Printf("[LOCKOUT] failed to update record for %s, failing open: %v", identifier, err)
			return s.unlockedStatus(0)
		}
	}

	if record.LockedUntil != nil {
		s.events.Record(ctx, nil, model.EventLockoutTriggered, "", map[string]interface{}{
			"identifier":   identifier,
			"attempts":     record.FailedAttempts,
			"locked_until": record.LockedUntil,
		})
		return lockedStatus(&record)
	}
	return s.unlockedStatus(record.FailedAttempts)
}

// CheckLockoutStatus reports the current state without recording anything.
// A record whose reset window has fully elapsed is proactively cleared.
func (s *LockoutService) CheckLockoutStatus(ctx context.Context, identifier string) *LockoutStatus {
	now := time.Now()
	db := s.db.WithContext(ctx)

	var record model.AccountLockout
	err := db.Where("identifier = ?", identifier).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.unlockedStatus(0)
	}
	if err != nil {
		log.Printf("[LOCKOUT] failed to check %s, failing open: %v", identifier, err)
		return s.unlockedStatus(0)
	}

	if record.IsPermanent || record.IsLocked(now) {
		return lockedStatus(&record)
	}

	if now.Sub(record.FirstFailureAt) > s.config.ResetWindow {
		if err := db.Delete(&model.AccountLockout{}, "identifier = ? AND is_permanent = ?", identifier, false).Error; err != nil {
			log.Printf("[LOCKOUT] failed to clear stale record for %s: %v", identifier, err)
		}
		return s.unlockedStatus(0)
	}

	return s.unlockedStatus(record.FailedAttempts)
}

// ResetLockout clears the identifier's record. Explicit admin action.
func (s *LockoutService) ResetLockout(ctx context.Context, identifier string) error {
	err := s.db.WithContext(ctx).
		Delete(&model.AccountLockout{}, "identifier = ?", identifier).Error
	if err != nil {
		return err
	}
	s.events.Record(ctx, nil, model.EventLockoutReset, "", map[string]interface{}{
		"identifier": identifier,
	})
	return nil
}

// ClearExpiredLockouts removes records whose lockout has expired and whose
// reset window has also elapsed. Returns the number removed.
func (s *LockoutService) ClearExpiredLockouts(ctx context.Context) (int64, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Where("is_permanent = ?", false).
		Where("locked_until IS NULL OR locked_until < ?", now).
		Where("first_failure_at < ?", now.Add(-s.config.ResetWindow)).
		Delete(&model.AccountLockout{})
	return res.RowsAffected, res.Error
}

// permanentLockHorizon is far enough out to never auto-expire
func permanentLockHorizon(now time.Time) time.Time {
	return now.AddDate(100, 0, 0)
}

// LockAccount permanently locks an account by email and cascades: every
// session is deleted, every refresh token revoked, and all outstanding
// access tokens bulk-invalidated. Errors propagate, silent failure on an
// operator action would be dangerous.
func (s *LockoutService) LockAccount(ctx context.Context, email, reason string) error {
	now := time.Now()
	db := s.db.WithContext(ctx)

	var user model.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	until := permanentLockHorizon(now)
	record := model.AccountLockout{
		Identifier:     email,
		FailedAttempts: 0,
		FirstFailureAt: now,
		LastFailureAt:  now,
		LockedUntil:    &until,
		IsPermanent:    true,
		LockReason:     reason,
	}

	var existing model.AccountLockout
	err := db.Where("identifier = ?", email).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(&record).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := db.Model(&model.AccountLockout{}).
			Where("identifier = ?", email).
			Updates(map[string]interface{}{
				"locked_until": &until,
				"is_permanent": true,
				"lock_reason":  reason,
			}).Error; err != nil {
			return err
		}
	}

	if err := s.sessions.RevokeAllUserSessions(ctx, user.ID); err != nil {
		return err
	}
	if err := s.blacklist.BlacklistAllUserTokens(ctx, user.ID, model.BlacklistReasonAccountDisabled); err != nil {
		return err
	}

	s.events.Record(ctx, &user.ID, model.EventAccountLocked, "", map[string]interface{}{
		"email":  email,
		"reason": reason,
	})
	return nil
}

// UnlockAccount clears a permanent lock
func (s *LockoutService) UnlockAccount(ctx context.Context, email string) error {
	db := s.db.WithContext(ctx)

	res := db.Delete(&model.AccountLockout{}, "identifier = ?", email)
	if res.Error != nil {
		return res.Error
	}

	var user model.User
	if err := db.Where("email = ?", email).First(&user).Error; err == nil {
		s.events.Record(ctx, &user.ID, model.EventAccountUnlocked, "", map[string]interface{}{
			"email": email,
		})
	}
	return nil
}

// GetAllLockedAccounts lists currently locked identifiers for admin review
func (s *LockoutService) GetAllLockedAccounts(ctx context.Context) ([]model.AccountLockout, error) {
	var records []model.AccountLockout
	err := s.db.WithContext(ctx).
		Where("is_permanent = ? OR locked_until > ?", true, time.Now()).
		Order("last_failure_at DESC").
		Find(&records).Error
	return records, err
}
