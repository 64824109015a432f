package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/utils/middleware"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// RecentActivity returns the caller's recent security events, newest
// first, for the account activity view.
func (h *AuthHandler) RecentActivity(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	events, err := h.events.ListForUser(c.Context(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return response.InternalServerError(c, "Failed to list activity")
	}

	return response.Success(c, fiber.Map{
		"events": events,
		"count":  len(events),
	})
}
