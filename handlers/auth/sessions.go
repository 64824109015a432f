package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/model"
	"github.com/creatorlift/creatorlift-api/utils/middleware"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// SessionResponse represents an active device session
type SessionResponse struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	Current      bool      `json:"current"`
}

// ListSessions returns the caller's active sessions, most recently
// active first, with the current session marked.
func (h *AuthHandler) ListSessions(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	currentSessionID, _ := middleware.GetSessionID(c)

	sessions, err := h.sessions.ListUserSessions(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list sessions")
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:           s.ID,
			DeviceID:     s.DeviceID,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			LastActivity: s.LastActivity,
			CreatedAt:    s.CreatedAt,
			Current:      s.ID == currentSessionID,
		})
	}

	return response.Success(c, fiber.Map{
		"sessions": out,
		"count":    len(out),
	})
}

// RevokeSession revokes one of the caller's own sessions by ID. Revoking
// the current session is allowed and behaves like a logout for that device.
func (h *AuthHandler) RevokeSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	sessionID := c.Params("id")
	if sessionID == "" {
		return response.BadRequest(c, "Session ID is required")
	}

	var session model.UserSession
	if err := h.db.WithContext(c.Context()).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error; err != nil {
		return response.NotFound(c, "Session not found")
	}

	if err := h.sessions.RevokeSession(c.Context(), session.ID); err != nil {
		return response.InternalServerError(c, "Failed to revoke session")
	}

	if currentSessionID, _ := middleware.GetSessionID(c); currentSessionID == sessionID {
		h.clearRefreshCookie(c)
	}

	return response.SuccessWithMessage(c, "Session revoked", nil)
}
