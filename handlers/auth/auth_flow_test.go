package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/database"
	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/services"
	authutil "github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
)

type testStack struct {
	app       *fiber.App
	db        *gorm.DB
	sessions  *services.SessionService
	lockouts  *services.LockoutService
	blacklist *authutil.BlacklistService
}

func setupAuthApp(t *testing.T) *testStack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	jwtManager := authutil.NewJWTManager(authutil.JWTConfig{
		Secret: "test-secret-key-for-unit-tests",
		Expiry: 15 * time.Minute,
		Issuer: "creatorlift-test",
	})

	events := services.NewSecurityEventService(db)
	blacklist := authutil.NewBlacklistService(db)
	sessions := services.NewSessionService(db, jwtManager, events, services.DefaultSessionConfig())
	lockouts := services.NewLockoutService(db, events, sessions, blacklist, nil, services.DefaultLockoutConfig())

	handler := NewAuthHandler(db, jwtManager, sessions, lockouts, blacklist, events, 30*24*time.Hour)
	authMW := middleware.NewAuthMiddleware(jwtManager, blacklist)

	app := fiber.New()
	group := app.Group("/api/v1/auth")
	group.Post("/register", handler.Register)
	group.Post("/login", handler.Login)
	group.Post("/refresh", handler.Refresh)
	group.Post("/logout", authMW.Required(), handler.Logout)
	group.Post("/change-password", authMW.Required(), handler.ChangePassword)
	group.Get("/sessions", authMW.Required(), handler.ListSessions)
	group.Delete("/sessions/:id", authMW.Required(), handler.RevokeSession)
	group.Get("/activity", authMW.Required(), handler.RecentActivity)

	return &testStack{app: app, db: db, sessions: sessions, lockouts: lockouts, blacklist: blacklist}
}

func jsonRequest(method, path string, payload interface{}) *http.Request {
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent/1.0")
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("Accept-Encoding", "gzip")
	return req
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func refreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}

func registerUser(t *testing.T, stack *testStack, email, password string) (LoginResponse, *http.Cookie) {
	t.Helper()

	resp, err := stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"name":     "Test User",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out LoginResponse
	decodeData(t, resp, &out)
	return out, refreshCookie(resp)
}

func TestRegisterAndLoginFlow(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)

	reg, cookie := registerUser(t, stack, "flow@example.com", "a-strong-password")
	require.NotEmpty(t, reg.AccessToken)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, RefreshCookiePath, cookie.Path)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	// The cookie value is the raw secret; only its hash may hit the store
	require.NotEmpty(t, cookie.Value)

	// Duplicate registration is rejected
	resp, err := stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "flow@example.com",
		"password": "a-strong-password",
		"name":     "Someone Else",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Login with the right password succeeds
	resp, err = stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "flow@example.com",
		"password": "a-strong-password",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login LoginResponse
	decodeData(t, resp, &login)
	require.Equal(t, "flow@example.com", login.User.Email)
	require.NotEmpty(t, login.AccessToken)
	// Same headers, same device fingerprint: the session is reused
	require.Equal(t, reg.SessionID, login.SessionID)
}

func TestLogin_WrongPasswordThenLockout(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)
	registerUser(t, stack, "locked@example.com", "a-strong-password")

	for i := 1; i <= 4; i++ {
		resp, err := stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "locked@example.com",
			"password": "wrong-password",
		}))
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i)
	}

	// Fifth failure trips the lock and says so
	resp, err := stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "locked@example.com",
		"password": "wrong-password",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// The right password is rejected without being verified while locked
	resp, err = stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "locked@example.com",
		"password": "a-strong-password",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusLocked, resp.StatusCode)
}

func TestLogin_UnknownAccountCountsFailures(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)

	// Failures against a nonexistent account get the same treatment,
	// no user enumeration through the lockout path
	for i := 0; i < 5; i++ {
		resp, err := stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "ghost@example.com",
			"password": "whatever-this-is",
		}))
		require.NoError(t, err)
		if i < 4 {
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		} else {
			require.Equal(t, http.StatusLocked, resp.StatusCode)
		}
	}
}

func TestRefresh_CookieFlow(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)
	_, cookie := registerUser(t, stack, "refresh@example.com", "a-strong-password")
	require.NotNil(t, cookie)

	req := jsonRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(cookie)
	resp, err := stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out RefreshResponse
	decodeData(t, resp, &out)
	require.NotEmpty(t, out.AccessToken)
	require.Equal(t, 15*60, out.ExpiresIn)
}

func TestRefresh_MissingAndInvalidToken(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)

	resp, err := stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/refresh", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{
		"refresh_token": "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Failure clears the cookie
	c := refreshCookie(resp)
	require.NotNil(t, c)
	require.Empty(t, c.Value)
}

func TestRefresh_DeviceMismatchBurnsToken(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)
	_, cookie := registerUser(t, stack, "stolen@example.com", "a-strong-password")
	require.NotNil(t, cookie)

	// Same secret presented with different headers: different fingerprint
	req := jsonRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.Header.Set("User-Agent", "different-agent/9.9")
	req.AddCookie(cookie)
	resp, err := stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The legitimate device is burned too
	req = jsonRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(cookie)
	resp, err = stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_BlacklistsAccessToken(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)
	reg, _ := registerUser(t, stack, "logout@example.com", "a-strong-password")

	req := jsonRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	resp, err := stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The cookie is cleared on the way out
	c := refreshCookie(resp)
	require.NotNil(t, c)
	require.Empty(t, c.Value)

	// The blacklisted access token no longer authenticates
	req = jsonRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	resp, err = stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePassword_InvalidatesEverything(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)
	reg, _ := registerUser(t, stack, "rotate@example.com", "a-strong-password")

	req := jsonRequest(http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"current_password": "a-strong-password",
		"new_password":     "an-even-stronger-one",
	})
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)

	// iat is second-granular; make sure the revocation marker lands after it
	time.Sleep(1100 * time.Millisecond)
	resp, err := stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The old access token is dead
	req = jsonRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	resp, err = stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Old password no longer logs in, the new one does
	resp, err = stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "rotate@example.com",
		"password": "a-strong-password",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = stack.app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "rotate@example.com",
		"password": "an-even-stronger-one",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessions_ListAndRevoke(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)
	reg, _ := registerUser(t, stack, "devices@example.com", "a-strong-password")

	// A login from a second device creates a second session
	req := jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "devices@example.com",
		"password": "a-strong-password",
	})
	req.Header.Set("User-Agent", "other-device/2.0")
	resp, err := stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var second LoginResponse
	decodeData(t, resp, &second)
	require.NotEqual(t, reg.SessionID, second.SessionID)

	req = jsonRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	resp, err = stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Sessions []SessionResponse `json:"sessions"`
		Count    int               `json:"count"`
	}
	decodeData(t, resp, &list)
	require.Equal(t, 2, list.Count)

	current := 0
	for _, s := range list.Sessions {
		if s.Current {
			current++
			require.Equal(t, reg.SessionID, s.ID)
		}
	}
	require.Equal(t, 1, current)

	// Revoke the other device's session
	req = jsonRequest(http.MethodDelete, "/api/v1/auth/sessions/"+second.SessionID, nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	resp, err = stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Revoking somebody else's session is a 404
	other, _ := registerUser(t, stack, "other@example.com", "a-strong-password")
	req = jsonRequest(http.MethodDelete, "/api/v1/auth/sessions/"+reg.SessionID, nil)
	req.Header.Set("Authorization", "Bearer "+other.AccessToken)
	resp, err = stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecentActivity_ScopedToCaller(t *testing.T) {
	t.Parallel()

	stack := setupAuthApp(t)

	alice, _ := registerUser(t, stack, "alice-activity@example.com", "a-strong-password")
	registerUser(t, stack, "bob-activity@example.com", "a-strong-password")

	// Unauthenticated callers are rejected
	resp, err := stack.app.Test(jsonRequest(http.MethodGet, "/api/v1/auth/activity", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := jsonRequest(http.MethodGet, "/api/v1/auth/activity", nil)
	req.Header.Set("Authorization", "Bearer "+alice.AccessToken)
	resp, err = stack.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Events []model.SecurityEvent `json:"events"`
		Count  int                   `json:"count"`
	}
	decodeData(t, resp, &out)
	require.NotEmpty(t, out.Events)
	require.Equal(t, len(out.Events), out.Count)

	// Only the caller's own events come back, never another account's
	for _, ev := range out.Events {
		require.NotNil(t, ev.UserID)
		require.Equal(t, alice.User.ID, *ev.UserID)
	}
}
