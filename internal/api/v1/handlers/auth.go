package handlers

import (
	"errors"
	"io"

	"taskhub/internal/media"
	"taskhub/internal/repository"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Register creates a user and returns a bearer token. The body may be JSON
// or a multipart form carrying an optional avatar image. A new avatar is
// staged on the media store before the row is written; if the write fails the
// upload is compensated with a delete.
func (h *Handler) Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Username string `json:"username" form:"username" validate:"required,min=2,max=255"`
		Email    string `json:"email" form:"email" validate:"required,email"`
		Password string `json:"password" form:"password" validate:"required,userpassword"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return failValidation(c, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error hashing password")
	}

	var photo *string
	if file, err := c.FormFile("avatar"); err == nil && file != nil {
		if err := media.ValidateImage(file); err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		f, err := file.Open()
		if err != nil {
			logger.ErrorLogger.Error("Error opening avatar upload", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Failed to save avatar image")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			logger.ErrorLogger.Error("Error reading avatar upload", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Failed to save avatar image")
		}
		url, err := h.media.Upload(c.Context(), data, file.Filename, "avatars")
		if err != nil {
			logger.ErrorLogger.Error("Error uploading avatar", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Failed to save avatar image")
		}
		photo = &url
	}

	user, err := h.users.Create(c.Context(), req.Username, req.Email, string(hashedPassword), photo)
	if err != nil {
		if photo != nil {
			if derr := h.media.Delete(c.Context(), *photo); derr != nil {
				logger.ErrorLogger.Error("Compensating avatar delete failed", zap.Error(derr))
			}
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			logger.SecurityLogger.Warn("Duplicate email on register", zap.String("email", req.Email))
			return fail(c, fiber.StatusConflict, "Email already in use.")
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error creating user")
	}

	accessToken, err := h.tokens.Generate(user.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error generating token")
	}

	logger.AuditLogger.Info("User registered", zap.String("user_id", user.ID))
	return ok(c, fiber.StatusCreated, "User registered successfully", fiber.Map{
		"accessToken": accessToken,
	})
}

// Login verifies an email/password pair. Both a missing account and a wrong
// password produce the same 401 message so the endpoint leaks no information
// about which emails exist.
func (h *Handler) Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return failValidation(c, err)
	}

	user, err := h.users.FindByEmail(c.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.ErrorLogger.Error("Error fetching user for login", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Internal server error")
		}
		logger.SecurityLogger.Warn("Login attempt for unknown email", zap.String("email", req.Email))
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.String("user_id", user.ID))
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password.")
	}

	accessToken, err := h.tokens.Generate(user.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error generating token")
	}

	logger.AuditLogger.Info("Login success", zap.String("user_id", user.ID))
	return ok(c, fiber.StatusOK, "Login success", fiber.Map{
		"accessToken": accessToken,
	})
}
