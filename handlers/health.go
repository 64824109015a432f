package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/database"
	"github.com/creatorlift/creatorlift-api/utils/response"
)

// HandleCheckHealth reports service and database health
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	if err := store.HealthCheck(); err != nil {
		return response.ServiceUnavailable(c, "Database unavailable")
	}
	return response.Success(c, fiber.Map{"status": "ok"})
}
