package middleware

import (
	"strings"

	"taskhub/internal/repository"
	"taskhub/internal/token"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocalsUserID is the context key the auth gate stores the caller id under.
const LocalsUserID = "userID"

// Authenticate validates the bearer token and confirms the referenced user
// still exists, so a still-valid token for a deleted account is rejected.
// On success the caller id is attached to the request context.
func Authenticate(tokens *token.Service, users *repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authentication token is required")
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, "Invalid token format")
		}

		userID, err := tokens.Verify(parts[1])
		if err != nil {
			logger.SecurityLogger.Warn("Token verification failed", zap.Error(err))
			return unauthorized(c, "Invalid or expired token")
		}

		exists, err := users.Exists(c.Context(), userID)
		if err != nil {
			logger.ErrorLogger.Error("Error resolving token user", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Internal server error",
				"success": false,
				"status":  fiber.StatusInternalServerError,
			})
		}
		if !exists {
			logger.SecurityLogger.Warn("Token references missing user", zap.String("user_id", userID))
			return unauthorized(c, "User belonging to this token no longer exists")
		}

		c.Locals(LocalsUserID, userID)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": msg,
		"success": false,
		"status":  fiber.StatusUnauthorized,
	})
}
