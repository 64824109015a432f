package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/crypto"
)

var (
	// ErrInvalidRefreshToken covers unknown, revoked and expired refresh
	// tokens as well as tokens whose session no longer exists. Callers
	// must treat it as a hard denial and clear the refresh cookie.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrDeviceMismatch means the refresh secret was valid but presented
	// from a device whose fingerprint differs from the one it was bound
	// to. The token is revoked as potential theft before this is returned.
	ErrDeviceMismatch = errors.New("device fingerprint mismatch")

	// ErrSessionNotFound is returned by device-scoped revocation
	ErrSessionNotFound = errors.New("session not found")
)

// SessionConfig holds session manager settings, fixed at startup
type SessionConfig struct {
	MaxSessionsPerUser int
	RefreshTokenTTL    time.Duration
	SessionIdleExpiry  time.Duration
}

// DefaultSessionConfig mirrors the documented defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxSessionsPerUser: 5,
		RefreshTokenTTL:    30 * 24 * time.Hour,
		SessionIdleExpiry:  30 * 24 * time.Hour,
	}
}

// SessionTokens is what a successful login or session upsert hands back.
// RefreshToken carries the raw opaque secret; it is shown exactly once and
// only its hash is persisted.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    int // access token lifetime in seconds
}

// SessionService manages per-device sessions and their refresh tokens
type SessionService struct {
	db     *gorm.DB
	jwt    *auth.JWTManager
	events *SecurityEventService
	config SessionConfig
}

// NewSessionService creates a new session service
func NewSessionService(db *gorm.DB, jwtManager *auth.JWTManager, events *SecurityEventService, config SessionConfig) *SessionService {
	if config.MaxSessionsPerUser <= 0 {
		config.MaxSessionsPerUser = 5
	}
	if config.RefreshTokenTTL <= 0 {
		config.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if config.SessionIdleExpiry <= 0 {
		config.SessionIdleExpiry = 30 * 24 * time.Hour
	}
	return &SessionService{
		db:     db,
		jwt:    jwtManager,
		events: events,
		config: config,
	}
}

// AccessTokenTTL exposes the configured access token lifetime in seconds
func (s *SessionService) AccessTokenTTL() int {
	return int(s.jwt.Config().Expiry.Seconds())
}

// CreateOrUpdateSession upserts the session for (user, device). A login
// from a known device updates the existing row; a new device may first
// evict the least-recently-active sessions beyond the per-user cap,
// revoking their refresh tokens. The previous refresh token for this
// device is always revoked so exactly one stays active per device.
func (s *SessionService) CreateOrUpdateSession(ctx context.Context, user *model.User, fingerprint, ip, userAgent string) (*SessionTokens, error) {
	now := time.Now()
	db := s.db.WithContext(ctx)

	var session model.UserSession
	err := db.Where("user_id = ? AND device_id = ?", user.ID, fingerprint).First(&session).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"last_activity": now,
			"ip_address":    ip,
			"user_agent":    userAgent,
			"email":         user.Email,
			"role":          user.Role,
		}
		if err := db.Model(&session).Updates(updates).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.evictBeyondCap(ctx, user.ID); err != nil {
			return nil, err
		}
		session = model.UserSession{
			ID:           uuid.New().String(),
			UserID:       user.ID,
			Email:        user.Email,
			Role:         user.Role,
			DeviceID:     fingerprint,
			IPAddress:    ip,
			UserAgent:    userAgent,
			LastActivity: now,
		}
		if err := db.Create(&session).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	refreshToken, err := s.issueRefreshToken(ctx, user.ID, fingerprint)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role, session.ID)
	if err != nil {
		return nil, err
	}

	s.events.Record(ctx, &user.ID, model.EventSessionCreated, ip, map[string]interface{}{
		"session_id": session.ID,
		"device_id":  fingerprint,
		"user_agent": userAgent,
	})

	return &SessionTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    session.ID,
		ExpiresIn:    s.AccessTokenTTL(),
	}, nil
}

// evictBeyondCap removes the oldest sessions so a new one fits under the
// cap, revoking the refresh tokens of every evicted device.
func (s *SessionService) evictBeyondCap(ctx context.Context, userID uint) error {
	db := s.db.WithContext(ctx)

	var sessions []model.UserSession
	if err := db.Where("user_id = ?", userID).Order("last_activity ASC").Find(&sessions).Error; err != nil {
		return err
	}

	excess := len(sessions) - s.config.MaxSessionsPerUser + 1
	if excess <= 0 {
		return nil
	}

	for _, victim := range sessions[:excess] {
		if err := s.revokeDeviceTokens(ctx, userID, victim.DeviceID); err != nil {
			return err
		}
		if err := db.Delete(&model.UserSession{}, "id = ?", victim.ID).Error; err != nil {
			return err
		}
		s.events.Record(ctx, &userID, model.EventSessionRevoked, victim.IPAddress, map[string]interface{}{
			"session_id": victim.ID,
			"device_id":  victim.DeviceID,
			"cause":      "session_cap_eviction",
		})
	}
	return nil
}

// issueRefreshToken revokes any active token for the device, then persists
// the hash of a fresh opaque secret and returns the raw secret.
func (s *SessionService) issueRefreshToken(ctx context.Context, userID uint, deviceID string) (string, error) {
	if err := s.revokeDeviceTokens(ctx, userID, deviceID); err != nil {
		return "", err
	}

	raw, err := crypto.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}

	token := model.RefreshToken{
		TokenHash: crypto.HashToken(raw),
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(s.config.RefreshTokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return "", err
	}
	return raw, nil
}

func (s *SessionService) revokeDeviceTokens(ctx context.Context, userID uint, deviceID string) error {
	return s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND device_id = ? AND is_revoked = ?", userID, deviceID, false).
		Update("is_revoked", true).Error
}

func (s *SessionService) revokeAllUserTokens(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error
}

// RefreshSession validates an opaque refresh secret and mints a new access
// token. The refresh token itself is deliberately not rotated so parallel
// tabs sharing the cookie are not invalidated; replay protection rests on
// the device binding and the 30-day TTL.
//
// Every failure path is fail-closed. A fingerprint mismatch additionally
// revokes the token since it indicates the secret leaked to another device.
func (s *SessionService) RefreshSession(ctx context.Context, rawRefresh, fingerprint, ip string) (string, error) {
	db := s.db.WithContext(ctx)
	now := time.Now()

	var token model.RefreshToken
	err := db.Where("token_hash = ?", crypto.HashToken(rawRefresh)).First(&token).Error
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if token.IsRevoked || token.ExpiresAt.Before(now) {
		return "", ErrInvalidRefreshToken
	}

	if token.DeviceID != fingerprint {
		if err := db.Model(&token).Update("is_revoked", true).Error; err != nil {
			return "", err
		}
		s.events.Record(ctx, &token.UserID, model.EventSuspiciousActivity, ip, map[string]interface{}{
			"cause":          "refresh_device_mismatch",
			"bound_device":   token.DeviceID,
			"presented_from": fingerprint,
		})
		return "", ErrDeviceMismatch
	}

	var session model.UserSession
	err = db.Where("user_id = ? AND device_id = ?", token.UserID, token.DeviceID).First(&session).Error
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	if err := db.Model(&session).Updates(map[string]interface{}{
		"last_activity": now,
		"ip_address":    ip,
	}).Error; err != nil {
		return "", err
	}

	accessToken, _, err := s.jwt.GenerateAccessToken(session.UserID, session.Email, session.Role, session.ID)
	if err != nil {
		return "", err
	}

	s.events.Record(ctx, &session.UserID, model.EventTokenRefreshed, ip, map[string]interface{}{
		"session_id": session.ID,
		"device_id":  session.DeviceID,
	})

	return accessToken, nil
}

// RevokeSession deletes one session and revokes that device's refresh
// tokens. Scoped to the single device, not the whole user.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	db := s.db.WithContext(ctx)

	var session model.UserSession
	if err := db.Where("id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if err := s.revokeDeviceTokens(ctx, session.UserID, session.DeviceID); err != nil {
		return err
	}
	if err := db.Delete(&model.UserSession{}, "id = ?", session.ID).Error; err != nil {
		return err
	}

	s.events.Record(ctx, &session.UserID, model.EventSessionRevoked, session.IPAddress, map[string]interface{}{
		"session_id": session.ID,
		"device_id":  session.DeviceID,
	})
	return nil
}

// Logout revokes one device's session when deviceID is set, or every
// session and refresh token for the user when it is empty.
func (s *SessionService) Logout(ctx context.Context, userID uint, deviceID string) error {
	db := s.db.WithContext(ctx)

	if deviceID != "" {
		if err := s.revokeDeviceTokens(ctx, userID, deviceID); err != nil {
			return err
		}
		if err := db.Delete(&model.UserSession{}, "user_id = ? AND device_id = ?", userID, deviceID).Error; err != nil {
			return err
		}
	} else {
		if err := s.revokeAllUserTokens(ctx, userID); err != nil {
			return err
		}
		if err := db.Delete(&model.UserSession{}, "user_id = ?", userID).Error; err != nil {
			return err
		}
	}

	s.events.Record(ctx, &userID, model.EventSessionRevoked, "", map[string]interface{}{
		"device_id": deviceID,
		"cause":     "logout",
	})
	return nil
}

// RevokeAllUserSessions removes every session and refresh token for a
// user. Used by the permanent lock and password change cascades.
func (s *SessionService) RevokeAllUserSessions(ctx context.Context, userID uint) error {
	return s.Logout(ctx, userID, "")
}

// ListUserSessions returns a user's sessions, most recently active first
func (s *SessionService) ListUserSessions(ctx context.Context, userID uint) ([]model.UserSession, error) {
	var sessions []model.UserSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity DESC").
		Find(&sessions).Error
	return sessions, err
}

// CleanupExpired deletes refresh tokens past their expiry and sessions
// idle beyond the configured window. Returns (tokens, sessions) removed.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, int64, error) {
	db := s.db.WithContext(ctx)
	now := time.Now()

	tokens := db.Where("expires_at < ?", now).Delete(&model.RefreshToken{})
	if tokens.Error != nil {
		return 0, 0, tokens.Error
	}

	sessions := db.Where("last_activity < ?", now.Add(-s.config.SessionIdleExpiry)).Delete(&model.UserSession{})
	if sessions.Error != nil {
		return tokens.RowsAffected, 0, sessions.Error
	}

	return tokens.RowsAffected, sessions.RowsAffected, nil
}
