package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"taskhub/internal/media"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// maxTaskFiles caps the number of attachments accepted per request.
const maxTaskFiles = 20

// maxPageValue bounds both pagination inputs so the computed offset can never
// overflow into a negative value.
const maxPageValue = 1_000_000

// attachmentURLs decodes the serialized attachment list; NULL and a missing
// column both mean "no attachments".
func attachmentURLs(t models.Task) []string {
	if !t.Files.Valid {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(t.Files.String), &urls); err != nil {
		logger.ErrorLogger.Error("Corrupt attachment list",
			zap.String("task_id", t.ID), zap.Error(err))
		return nil
	}
	return urls
}

// encodeAttachments serializes a URL list, collapsing empty lists to nil so
// the store never holds an "[]" encoding.
func encodeAttachments(urls []string) *string {
	if len(urls) == 0 {
		return nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// parseDone accepts the form-encoded done flag ("true"/"false", any case).
func parseDone(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// stageUploads validates and uploads the request's attachments. A nil first
// return means the request carried no files.
func (h *Handler) stageUploads(c *fiber.Ctx) ([]string, error) {
	files := formFiles(c, "files")
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > maxTaskFiles {
		return nil, errors.New("too many attachments: at most 20 files are allowed")
	}
	return media.UploadAll(c.Context(), h.media, files, "tasks")
}

// releaseAttachments best-effort deletes superseded media after the store
// row has been committed.
func (h *Handler) releaseAttachments(c *fiber.Ctx, urls []string) {
	if len(urls) == 0 {
		return
	}
	if err := media.DeleteAll(c.Context(), h.media, urls); err != nil {
		logger.ErrorLogger.Error("Error releasing superseded attachments", zap.Error(err))
	}
}

// CreateTask creates a task owned by the caller, with up to maxTaskFiles
// image attachments uploaded as a multipart batch. Uploads are staged before
// the row is written and compensated if the write fails.
func (h *Handler) CreateTask(c *fiber.Ctx) error {
	userID := callerID(c)

	type CreateTaskRequest struct {
		Title       string `json:"title" form:"title" validate:"required,min=2,max=255"`
		Description string `json:"description" form:"description" validate:"omitempty,max=4096"`
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.validate.Struct(req); err != nil {
		return failValidation(c, err)
	}

	urls, err := h.stageUploads(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	var description *string
	if req.Description != "" {
		description = &req.Description
	}

	task, err := h.tasks.Create(c.Context(), userID, req.Title, description, encodeAttachments(urls))
	if err != nil {
		h.releaseAttachments(c, urls)
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error creating task")
	}

	h.cacheTask(c.Context(), task)
	h.hub.Publish(userID, fiber.Map{"type": "task.created", "task": task.DTO()})

	logger.AuditLogger.Info("Task created", zap.String("task_id", task.ID), zap.String("user_id", userID))
	return ok(c, fiber.StatusCreated, "Task created successfully", task.DTO())
}

// ListTasks returns all of the caller's tasks, newest first.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	userID := callerID(c)

	tasks, err := h.tasks.ListByUser(c.Context(), userID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error fetching tasks")
	}

	dtos := make([]models.TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, t.DTO())
	}
	return ok(c, fiber.StatusOK, "Tasks fetched successfully", fiber.Map{"tasks": dtos})
}

// ListTasksPage returns one page of the caller's tasks plus the total count.
// Both query parameters are required and must be positive.
func (h *Handler) ListTasksPage(c *fiber.Ctx) error {
	userID := callerID(c)

	page, err1 := strconv.Atoi(c.Query("page"))
	perPage, err2 := strconv.Atoi(c.Query("tasksPerPage"))
	if err1 != nil || err2 != nil {
		return fail(c, fiber.StatusBadRequest, "Queries \"page\" and \"tasksPerPage\" are required")
	}
	if page <= 0 || perPage <= 0 {
		return fail(c, fiber.StatusBadRequest, "Queries \"page\" and \"tasksPerPage\" have to be bigger than 0")
	}
	if page > maxPageValue || perPage > maxPageValue {
		return fail(c, fiber.StatusBadRequest, "Queries \"page\" and \"tasksPerPage\" are out of range")
	}

	tasks, err := h.tasks.ListPage(c.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task page", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error fetching tasks")
	}
	total, err := h.tasks.CountByUser(c.Context(), userID)
	if err != nil {
		logger.ErrorLogger.Error("Error counting tasks", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error fetching tasks")
	}

	dtos := make([]models.TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, t.DTO())
	}
	return ok(c, fiber.StatusOK, "Tasks fetched successfully", fiber.Map{
		"tasks":          dtos,
		"taskTotalCount": total,
	})
}

// GetTask returns one task after the ownership check. The cache is consulted
// first but ownership is revalidated even on a cache hit.
func (h *Handler) GetTask(c *fiber.Ctx) error {
	taskID := c.Params("id")

	if task, found := h.cachedTask(c.Context(), taskID); found {
		if allowed, err := requireOwner(c, task.UserID); !allowed {
			return err
		}
		return ok(c, fiber.StatusOK, "Task found (from cache)", task.DTO())
	}

	task, err := h.tasks.FindByID(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "Task not found")
		}
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error fetching task")
	}
	if allowed, err := requireOwner(c, task.UserID); !allowed {
		return err
	}

	h.cacheTask(c.Context(), task)
	return ok(c, fiber.StatusOK, "Task found", task.DTO())
}

// loadOwnedTask fetches the task and applies the ownership predicate. When
// the bool is false the error response has already been written.
func (h *Handler) loadOwnedTask(c *fiber.Ctx) (models.Task, bool, error) {
	task, err := h.tasks.FindByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Task{}, false, fail(c, fiber.StatusNotFound, "Task not found")
		}
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return models.Task{}, false, fail(c, fiber.StatusInternalServerError, "Error fetching task")
	}
	if allowed, err := requireOwner(c, task.UserID); !allowed {
		return models.Task{}, false, err
	}
	return task, true, nil
}

// UpdateTask is the full update: title and done are required and the stored
// description is replaced by the provided value, which clears it when the
// field is omitted. Newly uploaded files replace the attachment list; the
// superseded objects are released after the row commits.
func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	task, proceed, err := h.loadOwnedTask(c)
	if !proceed {
		return err
	}

	type UpdateTaskRequest struct {
		Title       string `json:"title" form:"title" validate:"required,min=2,max=255"`
		Description string `json:"description" form:"description" validate:"omitempty,max=4096"`
		Done        string `json:"done" form:"done" validate:"required"`
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.validate.Struct(req); err != nil {
		return failValidation(c, err)
	}
	done, valid := parseDone(req.Done)
	if !valid {
		return fail(c, fiber.StatusBadRequest, "Done must be either \"true\" or \"false\"")
	}

	newURLs, err := h.stageUploads(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	var description *string
	if req.Description != "" {
		description = &req.Description
	}

	updated, err := h.tasks.Update(c.Context(), task.ID, req.Title, description, done, encodeAttachments(newURLs))
	if err != nil {
		h.releaseAttachments(c, newURLs)
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error updating task")
	}

	if len(newURLs) > 0 {
		h.releaseAttachments(c, attachmentURLs(task))
	}

	h.dropTaskCache(c.Context(), task.ID)
	h.cacheTask(c.Context(), updated)
	h.hub.Publish(task.UserID, fiber.Map{"type": "task.updated", "task": updated.DTO()})

	logger.AuditLogger.Info("Task updated", zap.String("task_id", task.ID))
	return ok(c, fiber.StatusOK, "Task updated successfully", updated.DTO())
}

// PatchTask is the partial update: only fields present in the body change,
// everything else keeps its stored value.
func (h *Handler) PatchTask(c *fiber.Ctx) error {
	task, proceed, err := h.loadOwnedTask(c)
	if !proceed {
		return err
	}

	type PatchTaskRequest struct {
		Title       *string `json:"title" form:"title" validate:"omitempty,min=2,max=255"`
		Description *string `json:"description" form:"description" validate:"omitempty,max=4096"`
		Done        *string `json:"done" form:"done"`
	}

	var req PatchTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in patch task", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.validate.Struct(req); err != nil {
		return failValidation(c, err)
	}

	var done *bool
	if req.Done != nil {
		v, valid := parseDone(*req.Done)
		if !valid {
			return fail(c, fiber.StatusBadRequest, "Done must be either \"true\" or \"false\"")
		}
		done = &v
	}

	newURLs, err := h.stageUploads(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	updated, err := h.tasks.UpdatePartial(c.Context(), task.ID, req.Title, req.Description, done, encodeAttachments(newURLs))
	if err != nil {
		h.releaseAttachments(c, newURLs)
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error updating task")
	}

	if len(newURLs) > 0 {
		h.releaseAttachments(c, attachmentURLs(task))
	}

	h.dropTaskCache(c.Context(), task.ID)
	h.cacheTask(c.Context(), updated)
	h.hub.Publish(task.UserID, fiber.Map{"type": "task.updated", "task": updated.DTO()})

	logger.AuditLogger.Info("Task patched", zap.String("task_id", task.ID))
	return ok(c, fiber.StatusOK, "Task updated successfully", updated.DTO())
}

// DeleteTask removes the task and every attachment it references. Media
// deletes are issued before the row delete; a repeated delete of the same id
// reports not-found.
func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	task, proceed, err := h.loadOwnedTask(c)
	if !proceed {
		return err
	}

	if urls := attachmentURLs(task); len(urls) > 0 {
		if err := media.DeleteAll(c.Context(), h.media, urls); err != nil {
			return fail(c, fiber.StatusBadRequest, "Failed to delete task attachments")
		}
	}

	deleted, err := h.tasks.Delete(c.Context(), task.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error deleting task")
	}
	if !deleted {
		return fail(c, fiber.StatusNotFound, "Task not found")
	}

	h.dropTaskCache(c.Context(), task.ID)
	h.hub.Publish(task.UserID, fiber.Map{"type": "task.deleted", "task": task.DTO()})

	logger.AuditLogger.Info("Task deleted", zap.String("task_id", task.ID))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Task was successfully deleted.",
		"success": true,
		"status":  fiber.StatusOK,
	})
}

// RemoveTaskFile detaches one attachment by URL: the media object is deleted
// first, then the stored list is rewritten without it. Removing the last
// attachment stores NULL rather than an empty array.
func (h *Handler) RemoveTaskFile(c *fiber.Ctx) error {
	task, proceed, err := h.loadOwnedTask(c)
	if !proceed {
		return err
	}

	type RemoveFileRequest struct {
		URL string `json:"url" validate:"required,url"`
	}

	var req RemoveFileRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in remove task file", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.validate.Struct(req); err != nil {
		return failValidation(c, err)
	}

	urls := attachmentURLs(task)
	remaining := make([]string, 0, len(urls))
	found := false
	for _, u := range urls {
		if u == req.URL {
			found = true
			continue
		}
		remaining = append(remaining, u)
	}
	if !found {
		return fail(c, fiber.StatusNotFound, "File not found in task.")
	}

	if err := h.media.Delete(c.Context(), req.URL); err != nil {
		logger.ErrorLogger.Error("Error deleting attachment", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, "Failed to delete file from media store")
	}

	updated, err := h.tasks.SetFiles(c.Context(), task.ID, encodeAttachments(remaining))
	if err != nil {
		logger.ErrorLogger.Error("Error updating attachment list", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error updating task")
	}

	h.dropTaskCache(c.Context(), task.ID)
	h.cacheTask(c.Context(), updated)
	h.hub.Publish(task.UserID, fiber.Map{"type": "task.updated", "task": updated.DTO()})

	logger.AuditLogger.Info("Task attachment removed",
		zap.String("task_id", task.ID), zap.String("url", req.URL))
	return ok(c, fiber.StatusOK, "Task updated successfully", updated.DTO())
}
