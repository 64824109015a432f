package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/auth"
)

func initMiddlewareDB(t *testing.T) *gorm.DB {
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

func middlewareFixture(t *testing.T, expiry time.Duration) (*fiber.App, *auth.JWTManager, *auth.BlacklistService, *model.User) {
	t.Helper()

	db := initMiddlewareDB(t)
	user := &model.User{
		Email:        "mw@example.com",
		PasswordHash: "irrelevant",
		Name:         "Test User",
		Role:         "creator",
	}
	require.NoError(t, db.Create(user).Error)

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: "test-secret-key-for-unit-tests",
		Expiry: expiry,
		Issuer: "creatorlift-test",
	})
	blacklist := auth.NewBlacklistService(db)

	app := fiber.New()
	mw := NewAuthMiddleware(jwtManager, blacklist)
	app.Get("/protected", mw.Required(), func(c *fiber.Ctx) error {
		userID, _ := GetUserID(c)
		return c.JSON(fiber.Map{"user_id": userID})
	})
	app.Get("/admin", mw.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/optional", mw.Optional(), func(c *fiber.Ctx) error {
		if _, ok := GetUserID(c); ok {
			return c.SendStatus(http.StatusOK)
		}
		return c.SendStatus(http.StatusNoContent)
	})

	return app, jwtManager, blacklist, user
}

func bearerRequest(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRequired_ValidToken(t *testing.T) {
	t.Parallel()

	app, jwtManager, _, user := middlewareFixture(t, 15*time.Minute)

	token, _, err := jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)

	resp, err := app.Test(bearerRequest("/protected", token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequired_MissingOrMalformedHeader(t *testing.T) {
	t.Parallel()

	app, _, _, _ := middlewareFixture(t, 15*time.Minute)

	resp, err := app.Test(bearerRequest("/protected", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequired_ExpiredToken(t *testing.T) {
	t.Parallel()

	app, jwtManager, _, user := middlewareFixture(t, -time.Minute)

	token, _, err := jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)

	resp, err := app.Test(bearerRequest("/protected", token))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequired_BlacklistedToken(t *testing.T) {
	t.Parallel()

	app, jwtManager, blacklist, user := middlewareFixture(t, 15*time.Minute)

	token, _, err := jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)
	require.NoError(t, blacklist.BlacklistToken(context.Background(), token, user.ID, model.BlacklistReasonLogout))

	resp, err := app.Test(bearerRequest("/protected", token))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequired_BulkRevokedToken(t *testing.T) {
	t.Parallel()

	app, jwtManager, blacklist, user := middlewareFixture(t, 15*time.Minute)

	token, _, err := jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)

	// iat has second precision; nudge the marker past it
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, blacklist.BlacklistAllUserTokens(context.Background(), user.ID, model.BlacklistReasonPasswordChange))

	resp, err := app.Test(bearerRequest("/protected", token))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdmin_RejectsNonAdmin(t *testing.T) {
	t.Parallel()

	app, jwtManager, _, user := middlewareFixture(t, 15*time.Minute)

	token, _, err := jwtManager.GenerateAccessToken(user.ID, user.Email, "creator", "session-1")
	require.NoError(t, err)

	resp, err := app.Test(bearerRequest("/admin", token))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminToken, _, err := jwtManager.GenerateAccessToken(user.ID, user.Email, "admin", "session-1")
	require.NoError(t, err)

	resp, err = app.Test(bearerRequest("/admin", adminToken))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOptional_PassesThroughWithoutToken(t *testing.T) {
	t.Parallel()

	app, jwtManager, _, user := middlewareFixture(t, 15*time.Minute)

	resp, err := app.Test(bearerRequest("/optional", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	token, _, err := jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, "session-1")
	require.NoError(t, err)

	resp, err = app.Test(bearerRequest("/optional", token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
