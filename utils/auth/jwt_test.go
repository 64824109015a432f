package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret: "test-secret-key-for-unit-tests",
		Expiry: expiry,
		Issuer: "creatorlift-test",
	})
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	t.Parallel()

	mgr := testManager(15 * time.Minute)

	token, jti, err := mgr.GenerateAccessToken(42, "user@example.com", "creator", "session-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, jti)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	require.EqualValues(t, 42, claims.UserID)
	require.Equal(t, "user@example.com", claims.Email)
	require.Equal(t, "creator", claims.Role)
	require.Equal(t, "session-1", claims.SessionID)
	require.Equal(t, "access", claims.TokenType)
	require.Equal(t, jti, claims.ID)
	require.Equal(t, "creatorlift-test", claims.Issuer)
}

func TestValidateToken_Expired(t *testing.T) {
	t.Parallel()

	mgr := testManager(-time.Minute)

	token, _, err := mgr.GenerateAccessToken(1, "user@example.com", "creator", "session-1")
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := testManager(15*time.Minute).GenerateAccessToken(1, "user@example.com", "creator", "session-1")
	require.NoError(t, err)

	other := NewJWTManager(JWTConfig{Secret: "a-different-secret", Expiry: 15 * time.Minute})
	_, err = other.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := testManager(15 * time.Minute).ValidateToken("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractClaims_IgnoresSignatureAndExpiry(t *testing.T) {
	t.Parallel()

	mgr := testManager(-time.Minute)
	token, _, err := mgr.GenerateAccessToken(7, "user@example.com", "creator", "session-1")
	require.NoError(t, err)

	// Expired and "unverified" extraction still yields the claims
	claims, err := mgr.ExtractClaims(token)
	require.NoError(t, err)
	require.EqualValues(t, 7, claims.UserID)

	expiry, err := mgr.GetTokenExpiry(token)
	require.NoError(t, err)
	require.True(t, expiry.Before(time.Now()))

	issuedAt, err := mgr.GetTokenIssuedAt(token)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), issuedAt, 5*time.Second)
}
