package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/model"
	authutil "github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword updates the caller's password and invalidates every
// outstanding credential: all access tokens issued before now and all
// sessions, including the one making this request. The client must log
// in again.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	if err := h.db.WithContext(c.Context()).First(&user, userID).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	if err := authutil.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return response.Unauthorized(c, "Current password is incorrect")
	}

	hash, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		return response.BadRequest(c, "New password does not meet requirements")
	}

	if err := h.db.WithContext(c.Context()).
		Model(&user).
		Update("password_hash", hash).Error; err != nil {
		return response.InternalServerError(c, "Failed to update password")
	}

	// Invalidation order matters: bump the token version first so any
	// access token issued before this point is dead even if session
	// cleanup fails partway.
	if err := h.blacklist.BlacklistAllUserTokens(c.Context(), userID, model.BlacklistReasonPasswordChange); err != nil {
		return response.InternalServerError(c, "Failed to invalidate existing tokens")
	}
	if err := h.sessions.RevokeAllUserSessions(c.Context(), userID); err != nil {
		return response.InternalServerError(c, "Failed to revoke sessions")
	}

	ip := middleware.ResolveClientIP(c)
	h.events.Record(c.Context(), &userID, model.EventPasswordChanged, ip, map[string]interface{}{
		"email": user.Email,
	})

	h.clearRefreshCookie(c)
	return response.SuccessWithMessage(c, "Password changed. Please log in again", nil)
}
