package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/model"
	authutil "github.com/creatorlift/creatorlift-api/utils/auth"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	SessionID   string       `json:"session_id"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

// Login handles user login. The request has already passed the IP rate
// limiter; here the order is lockout check, then credential verification,
// then session creation.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	ip := middleware.ResolveClientIP(c)
	identifier := strings.ToLower(strings.TrimSpace(req.Email))

	// Lockout check happens before touching credentials so a locked
	// account never leaks whether the password was right.
	status := h.lockouts.CheckLockoutStatus(c.Context(), identifier)
	if status.IsLocked {
		return h.rejectLocked(c, status.LockedUntil)
	}

	var user model.User
	userErr := h.db.WithContext(c.Context()).Where("email = ?", identifier).First(&user).Error
	if userErr == nil {
		userErr = authutil.VerifyPassword(user.PasswordHash, req.Password)
	}

	if userErr != nil {
		// Record the failure whether or not the account exists
		st := h.lockouts.RecordFailedAttempt(c.Context(), identifier)
		h.events.Record(c.Context(), nil, model.EventLoginFailed, ip, map[string]interface{}{
			"identifier":         identifier,
			"remaining_attempts": st.RemainingAttempts,
		})
		if st.IsLocked {
			return h.rejectLocked(c, st.LockedUntil)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if status.TotalFailedAttempts > 0 {
		if err := h.lockouts.ResetLockout(c.Context(), identifier); err != nil {
			// Stale counter only; the login still proceeds
		}
	}

	fingerprint := deviceFingerprint(c)
	tokens, err := h.sessions.CreateOrUpdateSession(c.Context(), &user, fingerprint, ip, c.Get("User-Agent"))
	if err != nil {
		return response.InternalServerError(c, "Failed to create session")
	}

	h.setRefreshCookie(c, tokens.RefreshToken)
	h.events.Record(c.Context(), &user.ID, model.EventLoginSuccess, ip, map[string]interface{}{
		"session_id": tokens.SessionID,
		"device_id":  fingerprint,
	})

	return response.Success(c, LoginResponse{
		User:        toUserResponse(&user),
		AccessToken: tokens.AccessToken,
		SessionID:   tokens.SessionID,
		ExpiresIn:   tokens.ExpiresIn,
	})
}

func (h *AuthHandler) rejectLocked(c *fiber.Ctx, lockedUntil *time.Time) error {
	retryAfter := 60
	if lockedUntil != nil {
		if secs := int(time.Until(*lockedUntil).Seconds()); secs > 0 {
			retryAfter = secs
		}
	}
	c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	return response.Locked(c,
		fmt.Sprintf("Account temporarily locked. Try again in %d seconds", retryAfter))
}
