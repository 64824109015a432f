package utils

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorlift/creatorlift-api/database"
)

// MakeHTTPHandleFunc adapts a store-aware handler to a fiber handler
func MakeHTTPHandleFunc(handler func(c *fiber.Ctx, store database.Storage) error, store database.Storage) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return handler(c, store)
	}
}
