package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/services"
	authutil "github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/validation"
)

// RefreshCookieName is the cookie carrying the opaque refresh secret
const RefreshCookieName = "refresh_token"

// RefreshCookiePath scopes the cookie to the refresh endpoint only
const RefreshCookiePath = "/api/v1/auth/refresh"

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db         *gorm.DB
	jwtManager *authutil.JWTManager
	sessions   *services.SessionService
	lockouts   *services.LockoutService
	blacklist  *authutil.BlacklistService
	events     *services.SecurityEventService
	validator  *validation.Validator
	refreshTTL time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	db *gorm.DB,
	jwtManager *authutil.JWTManager,
	sessions *services.SessionService,
	lockouts *services.LockoutService,
	blacklist *authutil.BlacklistService,
	events *services.SecurityEventService,
	refreshTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		db:         db,
		jwtManager: jwtManager,
		sessions:   sessions,
		lockouts:   lockouts,
		blacklist:  blacklist,
		events:     events,
		validator:  validation.NewValidator(),
		refreshTTL: refreshTTL,
	}
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// deviceFingerprint derives the caller's device fingerprint from the
// fixed header set.
func deviceFingerprint(c *fiber.Ctx) string {
	return authutil.DeviceFingerprint(
		c.Get("User-Agent"),
		c.Get("Accept-Language"),
		c.Get("Accept-Encoding"),
	)
}

// setRefreshCookie attaches the refresh secret as an HTTP-only cookie
// scoped to the refresh endpoint.
func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, rawToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    rawToken,
		Path:     RefreshCookiePath,
		Expires:  time.Now().Add(h.refreshTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh cookie immediately
func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
