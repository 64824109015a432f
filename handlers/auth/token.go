package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/services"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// RefreshRequest allows non-browser clients to pass the refresh token in
// the body instead of the cookie
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries the newly issued access token
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // in seconds
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh secret itself is not rotated; the same cookie remains valid
// until it expires or the session is revoked.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	rawRefresh := c.Cookies(RefreshCookieName)
	if rawRefresh == "" {
		var req RefreshRequest
		if err := c.BodyParser(&req); err == nil {
			rawRefresh = req.RefreshToken
		}
	}
	if rawRefresh == "" {
		return response.Unauthorized(c, "Refresh token required")
	}

	ip := middleware.ResolveClientIP(c)
	fingerprint := deviceFingerprint(c)

	accessToken, err := h.sessions.RefreshSession(c.Context(), rawRefresh, fingerprint, ip)
	if err != nil {
		h.clearRefreshCookie(c)
		switch {
		case errors.Is(err, services.ErrDeviceMismatch):
			return response.Unauthorized(c, "Session no longer valid for this device")
		case errors.Is(err, services.ErrInvalidRefreshToken):
			return response.Unauthorized(c, "Invalid or expired refresh token")
		default:
			return response.InternalServerError(c, "Failed to refresh session")
		}
	}

	return response.Success(c, RefreshResponse{
		AccessToken: accessToken,
		ExpiresIn:   h.sessions.AccessTokenTTL(),
	})
}

// LogoutRequest controls logout scope
type LogoutRequest struct {
	AllDevices bool `json:"all_devices"`
}

// Logout blacklists the presented access token and revokes the caller's
// session. With all_devices set, every session the user holds is revoked.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req LogoutRequest
	_ = c.BodyParser(&req) // empty body means current device only

	if rawToken, ok := middleware.GetAccessToken(c); ok {
		if err := h.blacklist.BlacklistToken(c.Context(), rawToken, userID, model.BlacklistReasonLogout); err != nil {
			return response.InternalServerError(c, "Failed to revoke access token")
		}
	}

	deviceID := deviceFingerprint(c)
	if req.AllDevices {
		deviceID = ""
	}
	if err := h.sessions.Logout(c.Context(), userID, deviceID); err != nil {
		return response.InternalServerError(c, "Failed to end session")
	}

	h.clearRefreshCookie(c)
	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}
