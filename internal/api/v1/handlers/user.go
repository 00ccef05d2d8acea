package handlers

import (
	"errors"
	"io"

	"taskhub/internal/media"
	"taskhub/internal/repository"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Me returns the authenticated caller's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := callerID(c)

	if dto, found := h.cachedUser(c.Context(), userID); found {
		return ok(c, fiber.StatusOK, "User found (from cache)", dto)
	}

	user, err := h.users.FindByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "User not found")
		}
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Internal server error")
	}

	h.cacheUser(c.Context(), user)
	return ok(c, fiber.StatusOK, "User found", user.DTO())
}

// UpdateProfile changes the caller's username and/or profile photo. When a
// new photo is uploaded the old one is released only after the row has been
// committed, so a crash mid-request never leaves a dangling reference.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	userID := callerID(c)

	type UpdateUserRequest struct {
		Username *string `json:"username" form:"username" validate:"omitempty,min=2,max=255"`
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update profile", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.validate.Struct(req); err != nil {
		return failValidation(c, err)
	}

	current, err := h.users.FindByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "User not found")
		}
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Internal server error")
	}

	var newPhoto *string
	if file, ferr := c.FormFile("photo"); ferr == nil && file != nil {
		if err := media.ValidateImage(file); err != nil {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		f, err := file.Open()
		if err != nil {
			logger.ErrorLogger.Error("Error opening photo upload", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Failed to save profile photo")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			logger.ErrorLogger.Error("Error reading photo upload", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Failed to save profile photo")
		}
		url, err := h.media.Upload(c.Context(), data, file.Filename, "avatars")
		if err != nil {
			logger.ErrorLogger.Error("Error uploading photo", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Failed to save profile photo")
		}
		newPhoto = &url
	}

	updated, err := h.users.UpdateProfile(c.Context(), userID, req.Username, newPhoto)
	if err != nil {
		if newPhoto != nil {
			if derr := h.media.Delete(c.Context(), *newPhoto); derr != nil {
				logger.ErrorLogger.Error("Compensating photo delete failed", zap.Error(derr))
			}
		}
		logger.ErrorLogger.Error("Error updating user", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error updating user")
	}

	// Release the photo the update superseded.
	if newPhoto != nil && current.Photo.Valid {
		if err := h.media.Delete(c.Context(), current.Photo.String); err != nil {
			logger.ErrorLogger.Error("Error deleting superseded photo", zap.Error(err))
		}
	}

	h.dropUserCache(c.Context(), userID)
	h.cacheUser(c.Context(), updated)

	logger.AuditLogger.Info("User updated", zap.String("user_id", userID))
	return ok(c, fiber.StatusOK, "User updated successfully", updated.DTO())
}

// DeleteUserPhoto clears the caller's photo reference, then deletes the media
// object it pointed at.
func (h *Handler) DeleteUserPhoto(c *fiber.Ctx) error {
	userID := callerID(c)

	current, err := h.users.FindByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "User not found")
		}
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Internal server error")
	}

	updated, err := h.users.ClearPhoto(c.Context(), userID)
	if err != nil {
		logger.ErrorLogger.Error("Error clearing photo", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error updating user")
	}

	if current.Photo.Valid {
		if err := h.media.Delete(c.Context(), current.Photo.String); err != nil {
			logger.ErrorLogger.Error("Error deleting photo from media store", zap.Error(err))
		}
	}

	h.dropUserCache(c.Context(), userID)
	h.cacheUser(c.Context(), updated)

	logger.AuditLogger.Info("User photo removed", zap.String("user_id", userID))
	return ok(c, fiber.StatusOK, "Photo removed successfully", updated.DTO())
}
