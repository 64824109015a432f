package auth

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/crypto"
)

func initBlacklistDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.BlacklistedToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func blacklistTestUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()

	user := &model.User{
		Email:        "blacklist@example.com",
		PasswordHash: "irrelevant",
		Name:         "Test User",
		Role:         "creator",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// tokenWithoutExpiry builds a signed token missing the exp claim
func tokenWithoutExpiry(t *testing.T) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Subject:  "user@example.com",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("whatever"))
	require.NoError(t, err)
	return raw
}

func TestBlacklistToken_RoundTrip(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)
	user := blacklistTestUser(t, db)
	ctx := context.Background()

	mgr := testManager(15 * time.Minute)
	token, _, err := mgr.GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)

	require.False(t, svc.IsTokenBlacklisted(ctx, token))

	require.NoError(t, svc.BlacklistToken(ctx, token, user.ID, model.BlacklistReasonLogout))
	require.True(t, svc.IsTokenBlacklisted(ctx, token))

	// Only the hash is stored, never the raw token
	var entry model.BlacklistedToken
	require.NoError(t, db.First(&entry).Error)
	require.Equal(t, crypto.HashToken(token), entry.TokenHash)
	require.NotContains(t, entry.TokenHash, ".")
}

func TestBlacklistToken_MissingExpiryRejected(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)

	err := svc.BlacklistToken(context.Background(), tokenWithoutExpiry(t), 1, model.BlacklistReasonLogout)
	require.ErrorIs(t, err, ErrInvalidToken)

	err = svc.BlacklistToken(context.Background(), "garbage", 1, model.BlacklistReasonLogout)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestBlacklistToken_ExpiredTokenStillAccepted(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)
	user := blacklistTestUser(t, db)
	ctx := context.Background()

	token, _, err := testManager(-time.Minute).GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)

	// Blacklisting an already-expired token succeeds; the entry just
	// ages out on the next cleanup
	require.NoError(t, svc.BlacklistToken(ctx, token, user.ID, model.BlacklistReasonSuspiciousActivity))

	// An entry past its expiry no longer reports as blacklisted once the
	// cache is cold; the token is dead from expiry alone at that point
	cold := NewBlacklistService(db)
	require.False(t, cold.IsTokenBlacklisted(ctx, token))
}

func TestIsTokenBlacklisted_ServedFromCache(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)
	user := blacklistTestUser(t, db)
	ctx := context.Background()

	token, _, err := testManager(15*time.Minute).GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)
	require.NoError(t, svc.BlacklistToken(ctx, token, user.ID, model.BlacklistReasonLogout))

	// Remove the store row; the cache entry still answers
	require.NoError(t, db.Where("1 = 1").Delete(&model.BlacklistedToken{}).Error)
	require.True(t, svc.IsTokenBlacklisted(ctx, token))

	// A fresh service with a cold cache consults the store
	require.False(t, NewBlacklistService(db).IsTokenBlacklisted(ctx, token))
}

func TestBlacklistAllUserTokens_VersionBump(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)
	user := blacklistTestUser(t, db)
	ctx := context.Background()

	issuedBefore := time.Now().Add(-time.Minute)
	require.True(t, svc.IsUserTokenVersionValid(ctx, user.ID, issuedBefore))

	require.NoError(t, svc.BlacklistAllUserTokens(ctx, user.ID, model.BlacklistReasonPasswordChange))

	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	require.Equal(t, user.TokenVersion+1, fresh.TokenVersion)
	require.NotNil(t, fresh.TokensInvalidAfter)

	// Tokens issued before the bump are dead, ones issued after are fine
	require.False(t, svc.IsUserTokenVersionValid(ctx, user.ID, issuedBefore))
	require.True(t, svc.IsUserTokenVersionValid(ctx, user.ID, time.Now().Add(time.Minute)))
}

func TestIsUserTokenVersionValid_FailsOpenForUnknownUser(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)

	require.True(t, svc.IsUserTokenVersionValid(context.Background(), 9999, time.Now()))
}

func TestCleanupExpiredTokens(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)
	user := blacklistTestUser(t, db)
	ctx := context.Background()

	live, _, err := testManager(15*time.Minute).GenerateAccessToken(user.ID, user.Email, user.Role, "s1")
	require.NoError(t, err)
	dead, _, err := testManager(-time.Minute).GenerateAccessToken(user.ID, user.Email, user.Role, "s2")
	require.NoError(t, err)

	require.NoError(t, svc.BlacklistToken(ctx, live, user.ID, model.BlacklistReasonLogout))
	require.NoError(t, svc.BlacklistToken(ctx, dead, user.ID, model.BlacklistReasonLogout))

	removed, err := svc.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	require.True(t, svc.IsTokenBlacklisted(ctx, live))
}

func TestStats(t *testing.T) {
	t.Parallel()

	db := initBlacklistDB(t)
	svc := NewBlacklistService(db)
	user := blacklistTestUser(t, db)
	ctx := context.Background()

	mgr := testManager(15 * time.Minute)
	for i, reason := range []string{
		model.BlacklistReasonLogout,
		model.BlacklistReasonLogout,
		model.BlacklistReasonAdminRevoke,
	} {
		token, _, err := mgr.GenerateAccessToken(user.ID, user.Email, user.Role, string(rune('a'+i)))
		require.NoError(t, err)
		require.NoError(t, svc.BlacklistToken(ctx, token, user.ID, reason))
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalActive)
	require.EqualValues(t, 3, stats.Last24h)
	require.EqualValues(t, 2, stats.ByReason[model.BlacklistReasonLogout])
	require.EqualValues(t, 1, stats.ByReason[model.BlacklistReasonAdminRevoke])
}
