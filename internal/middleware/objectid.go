package middleware

import (
	"regexp"

	"github.com/gofiber/fiber/v2"
)

var hexID = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)

// RequireHexID rejects requests whose path parameter is not a 24-character
// hex string, before any store lookup happens.
func RequireHexID(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !hexID.MatchString(c.Params(param)) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid ID format: input must be a 24 character hex string",
				"success": false,
				"status":  fiber.StatusBadRequest,
			})
		}
		return c.Next()
	}
}
