package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"
	"unicode"

	"taskhub/internal/media"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/token"
	ws "taskhub/internal/websocket"
	"taskhub/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const cacheTTL = time.Hour

// Handler carries the collaborators every endpoint needs. All of them are
// constructed in main and injected; there is no package-level state.
type Handler struct {
	users    *repository.UserRepository
	tasks    *repository.TaskRepository
	cache    *redis.Client
	media    media.Store
	tokens   *token.Service
	hub      *ws.Hub
	validate *validator.Validate
}

func New(users *repository.UserRepository, tasks *repository.TaskRepository,
	cache *redis.Client, mediaStore media.Store, tokens *token.Service, hub *ws.Hub) *Handler {

	v := validator.New()
	// 8-64 chars with at least one lower, one upper, one digit and one symbol.
	_ = v.RegisterValidation("userpassword", validPassword)

	return &Handler{
		users:    users,
		tasks:    tasks,
		cache:    cache,
		media:    mediaStore,
		tokens:   tokens,
		hub:      hub,
		validate: v,
	}
}

func validPassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	if len(pw) < 8 || len(pw) > 64 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// callerID returns the user id the auth gate attached to the request.
func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalsUserID).(string)
	return id
}

// requireOwner is the single ownership predicate applied after every record
// lookup. ok reports whether the handler may proceed; when it is false the
// forbidden response has already been written.
func requireOwner(c *fiber.Ctx, ownerID string) (ok bool, err error) {
	caller := callerID(c)
	if caller == ownerID {
		return true, nil
	}
	logger.SecurityLogger.Warn("Ownership mismatch",
		zap.String("caller", caller), zap.String("owner", ownerID), zap.String("url", c.OriginalURL()))
	return false, fail(c, fiber.StatusForbidden, "Task does not belong to user.")
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"message": msg,
		"success": false,
		"status":  status,
	})
}

func failValidation(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation error",
		"errors":  fieldErrors(err),
		"success": false,
		"status":  fiber.StatusBadRequest,
	})
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("Field %q failed on the %q rule", fe.Field(), fe.Tag()))
		}
		return msgs
	}
	return []string{err.Error()}
}

func ok(c *fiber.Ctx, status int, msg string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"message": msg,
		"success": true,
		"status":  status,
		"data":    data,
	})
}

// formFiles returns the uploaded files under field, or nil when the request
// is not multipart or carries none.
func formFiles(c *fiber.Ctx, field string) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[field]
}

// Cache helpers. The cache is an optimization only: failures are logged and
// the request carries on against the store.

func (h *Handler) cacheTask(ctx context.Context, t models.Task) {
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := h.cache.SetEX(ctx, "task:"+t.ID, data, cacheTTL).Err(); err != nil {
		logger.ErrorLogger.Error("Error caching task", zap.Error(err))
	}
}

func (h *Handler) cachedTask(ctx context.Context, id string) (models.Task, bool) {
	cached, err := h.cache.Get(ctx, "task:"+id).Result()
	if err != nil {
		return models.Task{}, false
	}
	var t models.Task
	if err := json.Unmarshal([]byte(cached), &t); err != nil {
		return models.Task{}, false
	}
	return t, true
}

func (h *Handler) dropTaskCache(ctx context.Context, id string) {
	h.cache.Del(ctx, "task:"+id)
}

func (h *Handler) cacheUser(ctx context.Context, u models.User) {
	data, err := json.Marshal(u.DTO())
	if err != nil {
		return
	}
	if err := h.cache.SetEX(ctx, "user:"+u.ID, data, cacheTTL).Err(); err != nil {
		logger.ErrorLogger.Error("Error caching user", zap.Error(err))
	}
}

func (h *Handler) cachedUser(ctx context.Context, id string) (models.UserDTO, bool) {
	cached, err := h.cache.Get(ctx, "user:"+id).Result()
	if err != nil {
		return models.UserDTO{}, false
	}
	var dto models.UserDTO
	if err := json.Unmarshal([]byte(cached), &dto); err != nil {
		return models.UserDTO{}, false
	}
	return dto, true
}

func (h *Handler) dropUserCache(ctx context.Context, id string) {
	h.cache.Del(ctx, "user:"+id)
}
