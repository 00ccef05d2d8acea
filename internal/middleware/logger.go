package middleware

import (
	"fmt"
	"runtime/debug"

	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler logs every incoming request and turns panics into a generic
// 500 response instead of tearing down the connection.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				errMsg := fmt.Sprintf("Recovered from panic: %v", r)
				stack := string(debug.Stack())
				logger.ErrorLogger.Error(errMsg, zap.String("stack", stack))
				c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Internal server error",
					"success": false,
					"status":  fiber.StatusInternalServerError,
				})
			}
		}()
		logger.RequestLogger.Info("Incoming request",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
		)
		return c.Next()
	}
}
