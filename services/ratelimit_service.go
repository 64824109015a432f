package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/cache"
)

// RateLimitRule configures one endpoint class: a fixed counting window, a
// request budget inside it, and a block duration applied from the moment
// of violation (deliberately longer than the window itself).
type RateLimitRule struct {
	Window        time.Duration
	MaxRequests   int
	BlockDuration time.Duration
}

// DefaultRateLimitRules maps endpoint classes to their limits. Credential
// endpoints are the tightest, the AI-analysis endpoints moderate, and
// everything else gets the lenient default.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"auth/login":          {Window: 15 * time.Minute, MaxRequests: 5, BlockDuration: 30 * time.Minute},
		"auth/register":       {Window: time.Hour, MaxRequests: 3, BlockDuration: time.Hour},
		"auth/reset-password": {Window: time.Hour, MaxRequests: 3, BlockDuration: time.Hour},
		"videos/analyze":      {Window: time.Minute, MaxRequests: 10, BlockDuration: 5 * time.Minute},
	}
}

// DefaultRule applies to any class without an explicit entry
var DefaultRule = RateLimitRule{Window: time.Minute, MaxRequests: 100, BlockDuration: 2 * time.Minute}

// RateLimitResult is returned for every checked request
type RateLimitResult struct {
	Allowed           bool      `json:"allowed"`
	RemainingRequests int       `json:"remaining_requests"`
	ResetTime         time.Time `json:"reset_time"`
	RetryAfter        int       `json:"retry_after,omitempty"` // seconds, only when rejected
}

// EndpointClassFromPath normalizes a request path to its endpoint class:
// the API-version prefix is stripped and at most the first two remaining
// segments are kept ("/api/v1/auth/login/extra" -> "auth/login").
func EndpointClassFromPath(path string) string {
	segments := []string{}
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, strings.ToLower(seg))
	}

	// Strip "api" and a version segment like "v1"
	for len(segments) > 0 {
		s := segments[0]
		if s == "api" || (len(s) >= 2 && s[0] == 'v' && s[1] >= '0' && s[1] <= '9') {
			segments = segments[1:]
			continue
		}
		break
	}

	if len(segments) == 0 {
		return "root"
	}
	if len(segments) == 1 {
		return segments[0]
	}
	return segments[0] + "/" + segments[1]
}

// RateLimitService keeps fixed-window request counters per (ip, endpoint
// class) with escalation to a timed block. Store errors always fail open:
// rate limiting must never be the single point of total outage.
type RateLimitService struct {
	db     *gorm.DB
	events *SecurityEventService
	locks  *cache.KeyLock
	rules  map[string]RateLimitRule
}

// NewRateLimitService creates a new rate limit service. locks may be nil.
func NewRateLimitService(db *gorm.DB, events *SecurityEventService, locks *cache.KeyLock, rules map[string]RateLimitRule) *RateLimitService {
	if rules == nil {
		rules = DefaultRateLimitRules()
	}
	return &RateLimitService{
		db:     db,
		events: events,
		locks:  locks,
		rules:  rules,
	}
}

// RuleFor returns the rule for an endpoint class
func (s *RateLimitService) RuleFor(endpointClass string) RateLimitRule {
	if rule, ok := s.rules[endpointClass]; ok {
		return rule
	}
	return DefaultRule
}

func allowAll(rule RateLimitRule, now time.Time) *RateLimitResult {
	return &RateLimitResult{
		Allowed:           true,
		RemainingRequests: rule.MaxRequests,
		ResetTime:         now.Add(rule.Window),
	}
}

// CheckRateLimit counts one request for (ip, endpointClass) and decides
// whether it may proceed. Runs before authentication and business logic.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, ip, endpointClass, userAgent string) *RateLimitResult {
	rule := s.RuleFor(endpointClass)
	now := time.Now()

	release, _ := s.locks.Acquire(ctx, "ratelimit:"+ip+":"+endpointClass)
	defer release()

	db := s.db.WithContext(ctx)

	// A manual admin block covers every endpoint class
	if endpointClass != model.EndpointClassManual {
		var manual model.IPRateLimit
		err := db.Where("ip_address = ? AND endpoint_class = ?", ip, model.EndpointClassManual).First(&manual).Error
		if err == nil && manual.IsBlocked(now) {
			return &RateLimitResult{
				Allowed:    false,
				ResetTime:  *manual.BlockedUntil,
				RetryAfter: retryAfterSeconds(*manual.BlockedUntil, now),
			}
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[RATELIMIT] manual block check failed for %s, failing open: %v", ip, err)
		}
	}

	var record model.IPRateLimit
	err := db.Where("ip_address = ? AND endpoint_class = ?", ip, endpointClass).First(&record).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[RATELIMIT] store read failed for %s %s, failing open: %v", ip, endpointClass, err)
		return allowAll(rule, now)
	}

	if exists && record.IsBlocked(now) {
		return &RateLimitResult{
			Allowed:    false,
			ResetTime:  *record.BlockedUntil,
			RetryAfter: retryAfterSeconds(*record.BlockedUntil, now),
		}
	}

	reset := !exists || now.Sub(record.WindowStart) > rule.Window

	if !exists {
		record = model.IPRateLimit{
			IPAddress:     ip,
			EndpointClass: endpointClass,
			RequestCount:  1,
			WindowStart:   now,
			FirstRequest:  now,
			LastRequest:   now,
			UserAgent:     userAgent,
		}
		if err := db.Create(&record).Error; err != nil {
			log.Printf("[RATELIMIT] store create failed for %s %s, failing open: %v", ip, endpointClass, err)
			return allowAll(rule, now)
		}
		return &RateLimitResult{
			Allowed:           true,
			RemainingRequests: rule.MaxRequests - 1,
			ResetTime:         now.Add(rule.Window),
		}
	}

	if reset {
		record.RequestCount = 1
		record.WindowStart = now
	} else {
		record.RequestCount++
	}
	record.LastRequest = now

	updates := map[string]interface{}{
		"request_count": record.RequestCount,
		"window_start":  record.WindowStart,
		"last_request":  record.LastRequest,
		"user_agent":    userAgent,
	}

	if record.RequestCount > rule.MaxRequests {
		// A full block period from the moment of violation, not from
		// the start of the counting window.
		blockedUntil := now.Add(rule.BlockDuration)
		record.BlockedUntil = &blockedUntil
		updates["blocked_until"] = &blockedUntil

		if err := db.Model(&model.IPRateLimit{}).
			Where("ip_address = ? AND endpoint_class = ?", ip, endpointClass).
			Updates(updates).Error; err != nil {
			log.Printf("[RATELIMIT] store update failed for %s %s, failing open: %v", ip, endpointClass, err)
			return allowAll(rule, now)
		}

		s.events.Record(ctx, nil, model.EventIPBlocked, ip, map[string]interface{}{
			"endpoint_class": endpointClass,
			"request_count":  record.RequestCount,
			"blocked_until":  blockedUntil,
		})

		return &RateLimitResult{
			Allowed:    false,
			ResetTime:  blockedUntil,
			RetryAfter: retryAfterSeconds(blockedUntil, now),
		}
	}

	if err := db.Model(&model.IPRateLimit{}).
		Where("ip_address = ? AND endpoint_class = ?", ip, endpointClass).
		Updates(updates).Error; err != nil {
		log.Printf("[RATELIMIT] store update failed for %s %s, failing open: %v", ip, endpointClass, err)
		return allowAll(rule, now)
	}

	return &RateLimitResult{
		Allowed:           true,
		RemainingRequests: rule.MaxRequests - record.RequestCount,
		ResetTime:         record.WindowStart.Add(rule.Window),
	}
}

func retryAfterSeconds(until, now time.Time) int {
	secs := int(until.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// BlockIP places a manual admin block on an IP, independent of the
// automatic counters. Errors propagate.
func (s *RateLimitService) BlockIP(ctx context.Context, ip string, duration time.Duration, reason string, adminUserID uint) error {
	now := time.Now()
	blockedUntil := now.Add(duration)
	db := s.db.WithContext(ctx)

	var record model.IPRateLimit
	err := db.Where("ip_address = ? AND endpoint_class = ?", ip, model.EndpointClassManual).First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = model.IPRateLimit{
			IPAddress:     ip,
			EndpointClass: model.EndpointClassManual,
			WindowStart:   now,
			FirstRequest:  now,
			LastRequest:   now,
			BlockedUntil:  &blockedUntil,
		}
		if err := db.Create(&record).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := db.Model(&model.IPRateLimit{}).
			Where("ip_address = ? AND endpoint_class = ?", ip, model.EndpointClassManual).
			Updates(map[string]interface{}{
				"blocked_until": &blockedUntil,
				"last_request":  now,
			}).Error; err != nil {
			return err
		}
	}

	s.events.Record(ctx, &adminUserID, model.EventIPBlocked, ip, map[string]interface{}{
		"reason":        reason,
		"blocked_until": blockedUntil,
		"manual":        true,
	})
	return nil
}

// UnblockIP lifts every block on an IP, manual and automatic. The
// automatic counters restart from a fresh window, otherwise the
// saturated count would re-block the IP on its next request.
func (s *RateLimitService) UnblockIP(ctx context.Context, ip string, adminUserID uint) error {
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.IPRateLimit{}).
		Where("ip_address = ?", ip).
		Updates(map[string]interface{}{
			"blocked_until": nil,
			"request_count": 0,
			"window_start":  time.Now(),
		}).Error; err != nil {
		return err
	}
	if err := db.Delete(&model.IPRateLimit{}, "ip_address = ? AND endpoint_class = ?", ip, model.EndpointClassManual).Error; err != nil {
		return err
	}

	s.events.Record(ctx, &adminUserID, model.EventIPUnblocked, ip, map[string]interface{}{
		"manual": true,
	})
	return nil
}

// IsIPBlocked reports whether any record for the IP carries an active
// block (the manual class included). Fails open.
func (s *RateLimitService) IsIPBlocked(ctx context.Context, ip string) (bool, int) {
	now := time.Now()
	var record model.IPRateLimit
	err := s.db.WithContext(ctx).
		Where("ip_address = ? AND blocked_until > ?", ip, now).
		Order("blocked_until DESC").
		First(&record).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[RATELIMIT] block check failed for %s, failing open: %v", ip, err)
		}
		return false, 0
	}
	return true, retryAfterSeconds(*record.BlockedUntil, now)
}

// RateLimitStats summarizes limiter state for admin visibility
type RateLimitStats struct {
	TotalBlocked     int64               `json:"total_blocked"`
	CurrentlyBlocked int64               `json:"currently_blocked"`
	TopOffenders     []model.IPRateLimit `json:"top_offenders"`
}

// GetRateLimitStats aggregates blocked counts and the heaviest offenders
func (s *RateLimitService) GetRateLimitStats(ctx context.Context) (*RateLimitStats, error) {
	stats := &RateLimitStats{}
	db := s.db.WithContext(ctx)

	err := db.Model(&model.IPRateLimit{}).
		Where("blocked_until IS NOT NULL").
		Count(&stats.TotalBlocked).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&model.IPRateLimit{}).
		Where("blocked_until > ?", time.Now()).
		Count(&stats.CurrentlyBlocked).Error
	if err != nil {
		return nil, err
	}

	err = db.Order("request_count DESC").
		Limit(10).
		Find(&stats.TopOffenders).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// CleanupOldRecords deletes records older than seven days that are not
// currently blocked. Returns the number removed.
func (s *RateLimitService) CleanupOldRecords(ctx context.Context) (int64, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Where("last_request < ?", now.Add(-7*24*time.Hour)).
		Where("blocked_until IS NULL OR blocked_until < ?", now).
		Delete(&model.IPRateLimit{})
	return res.RowsAffected, res.Error
}
