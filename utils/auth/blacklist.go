package auth

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/crypto"
)

// blacklistCache is an in-process fast path for repeat blacklist checks.
// It is advisory only; the store stays authoritative. In a multi-instance
// deployment each process has its own copy, which is acceptable because a
// cache miss just falls through to the store.
type blacklistCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time // token hash -> expiry
}

func newBlacklistCache() *blacklistCache {
	return &blacklistCache{entries: make(map[string]time.Time)}
}

func (c *blacklistCache) get(hash string) bool {
	c.mu.RLock()
	expiry, ok := c.entries[hash]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		c.mu.Lock()
		delete(c.entries, hash)
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *blacklistCache) put(hash string, expiry time.Time) {
	c.mu.Lock()
	c.entries[hash] = expiry
	c.mu.Unlock()
}

func (c *blacklistCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]time.Time)
	c.mu.Unlock()
}

func (c *blacklistCache) purgeExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for hash, expiry := range c.entries {
		if now.After(expiry) {
			delete(c.entries, hash)
			purged++
		}
	}
	return purged
}

// BlacklistService handles access token revocation: per-token blacklisting
// for logout and a per-user version bump for bulk ("all devices")
// revocation. Both checks fail open on store errors; this registry is a
// defense-in-depth layer on top of 15-minute token TTLs, so an outage
// degrades security posture instead of taking down the API.
type BlacklistService struct {
	db    *gorm.DB
	cache *blacklistCache
}

// NewBlacklistService creates a new blacklist service with its own cache
func NewBlacklistService(db *gorm.DB) *BlacklistService {
	return &BlacklistService{
		db:    db,
		cache: newBlacklistCache(),
	}
}

// tokenExpiry decodes the exp claim without verifying the signature. Even
// an already-expired or tampered token can be blacklisted as long as it
// carries a well-formed expiry.
func tokenExpiry(rawToken string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, &claims); err != nil {
		return time.Time{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrInvalidToken
	}
	return claims.ExpiresAt.Time, nil
}

// BlacklistToken adds an access token to the blacklist. Only the SHA-256
// hash of the token is persisted, never the raw value. Fails with
// ErrInvalidToken when the token carries no usable expiry claim.
func (s *BlacklistService) BlacklistToken(ctx context.Context, rawToken string, userID uint, reason string) error {
	expiresAt, err := tokenExpiry(rawToken)
	if err != nil {
		return err
	}

	hash := crypto.HashToken(rawToken)
	entry := model.BlacklistedToken{
		TokenHash: hash,
		UserID:    userID,
		Reason:    reason,
		ExpiresAt: expiresAt,
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}

	s.cache.put(hash, expiresAt)
	return nil
}

// IsTokenBlacklisted checks the cache first, then the store. Fails open
// (false) on store errors.
func (s *BlacklistService) IsTokenBlacklisted(ctx context.Context, rawToken string) bool {
	hash := crypto.HashToken(rawToken)

	if s.cache.get(hash) {
		return true
	}

	var entry model.BlacklistedToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", hash, time.Now()).
		First(&entry).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("[BLACKLIST] store check failed, failing open: %v", err)
		}
		return false
	}

	s.cache.put(hash, entry.ExpiresAt)
	return true
}

// BlacklistAllUserTokens invalidates every outstanding access token for a
// user by bumping the token version marker instead of enumerating tokens.
// The whole cache is cleared; it is only an optimization, not the source
// of truth.
func (s *BlacklistService) BlacklistAllUserTokens(ctx context.Context, userID uint, reason string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"token_version":        gorm.Expr("token_version + ?", 1),
			"tokens_invalid_after": now,
		}).Error
	if err != nil {
		return err
	}

	log.Printf("[BLACKLIST] bulk revocation for user %d (%s)", userID, reason)
	s.cache.clear()
	return nil
}

// IsUserTokenVersionValid reports whether a token issued at the given time
// predates the user's last bulk revocation. Fails open (true) when the user
// record cannot be loaded.
func (s *BlacklistService) IsUserTokenVersionValid(ctx context.Context, userID uint, issuedAt time.Time) bool {
	var user model.User
	err := s.db.WithContext(ctx).
		Select("token_version", "tokens_invalid_after").
		First(&user, userID).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("[BLACKLIST] version check failed, failing open: %v", err)
		}
		return true
	}

	if user.TokensInvalidAfter == nil {
		return true
	}
	return !issuedAt.Before(*user.TokensInvalidAfter)
}

// CleanupExpiredTokens removes expired entries from the store and the
// cache. Returns the number of store rows removed.
func (s *BlacklistService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&model.BlacklistedToken{})
	if res.Error != nil {
		return 0, res.Error
	}

	s.cache.purgeExpired()
	return res.RowsAffected, nil
}

// BlacklistStats summarizes blacklist contents for admin visibility
type BlacklistStats struct {
	TotalActive int64            `json:"total_active"`
	Last24h     int64            `json:"last_24h"`
	ByReason    map[string]int64 `json:"by_reason"`
}

// Stats aggregates active entry counts by reason and within the last 24h
func (s *BlacklistService) Stats(ctx context.Context) (*BlacklistStats, error) {
	now := time.Now()
	stats := &BlacklistStats{ByReason: make(map[string]int64)}

	err := s.db.WithContext(ctx).
		Model(&model.BlacklistedToken{}).
		Where("expires_at > ?", now).
		Count(&stats.TotalActive).Error
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Model(&model.BlacklistedToken{}).
		Where("created_at > ?", now.Add(-24*time.Hour)).
		Count(&stats.Last24h).Error
	if err != nil {
		return nil, err
	}

	type reasonCount struct {
		Reason string
		Count  int64
	}
	var counts []reasonCount
	err = s.db.WithContext(ctx).
		Model(&model.BlacklistedToken{}).
		Select("reason, COUNT(*) as count").
		Where("expires_at > ?", now).
		Group("reason").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, rc := range counts {
		stats.ByReason[rc.Reason] = rc.Count
	}

	return stats, nil
}
