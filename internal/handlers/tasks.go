package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"deadliner/internal/models"
	taskService "deadliner/internal/service/task"
)

type taskHandler struct {
	svc      *taskService.Service
	validate *validator.Validate
}

type createTaskRequest struct {
	Title      string   `json:"title" validate:"required"`
	Notes      string   `json:"notes"`
	DeadlineAt string   `json:"deadline_at" validate:"required"`
	Tags       []string `json:"tags"`
	Intervals  []string `json:"intervals"`
}

type updateTaskRequest struct {
	Title      *string  `json:"title"`
	Notes      *string  `json:"notes"`
	DeadlineAt *string  `json:"deadline_at"`
	Tags       []string `json:"tags"`
	Intervals  []string `json:"intervals"`
}

type taskResponse struct {
	*models.Task
	Reminders []models.Reminder `json:"reminders,omitempty"`
}

func (h *taskHandler) create(ctx *fasthttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "Missing user identity")
		return
	}

	var req createTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	deadline, err := time.Parse(time.RFC3339, req.DeadlineAt)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "VALIDATION_ERROR", "deadline_at must be RFC 3339")
		return
	}

	task, err := h.svc.Create(ctx, taskService.CreateParams{
		UserID:       uid,
		Title:        req.Title,
		Notes:        req.Notes,
		Tags:         req.Tags,
		DeadlineAt:   deadline,
		IntervalKeys: req.Intervals,
	})
	if err != nil {
		h.writeServiceError(ctx, err)
		return
	}

	writeData(ctx, fasthttp.StatusCreated, taskResponse{Task: task})
}

func (h *taskHandler) get(ctx *fasthttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "Missing user identity")
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		writeError(ctx, fasthttp.StatusBadRequest, "BAD_REQUEST", "Invalid task id")
		return
	}

	task, reminders, err := h.svc.Get(ctx, id, uid)
	if err != nil {
		h.writeServiceError(ctx, err)
		return
	}

	writeData(ctx, fasthttp.StatusOK, taskResponse{Task: task, Reminders: reminders})
}

func (h *taskHandler) update(ctx *fasthttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "Missing user identity")
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		writeError(ctx, fasthttp.StatusBadRequest, "BAD_REQUEST", "Invalid task id")
		return
	}

	var req updateTaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body")
		return
	}

	params := taskService.UpdateParams{
		TaskID:       id,
		UserID:       uid,
		Title:        req.Title,
		Notes:        req.Notes,
		Tags:         req.Tags,
		IntervalKeys: req.Intervals,
	}
	if req.DeadlineAt != nil {
		deadline, err := time.Parse(time.RFC3339, *req.DeadlineAt)
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "VALIDATION_ERROR", "deadline_at must be RFC 3339")
			return
		}
		params.DeadlineAt = &deadline
	}

	task, err := h.svc.Update(ctx, params)
	if err != nil {
		h.writeServiceError(ctx, err)
		return
	}

	writeData(ctx, fasthttp.StatusOK, taskResponse{Task: task})
}

func (h *taskHandler) complete(ctx *fasthttp.RequestCtx) {
	h.deactivate(ctx, h.svc.Complete)
}

func (h *taskHandler) remove(ctx *fasthttp.RequestCtx) {
	h.deactivate(ctx, h.svc.Delete)
}

func (h *taskHandler) deactivate(ctx *fasthttp.RequestCtx, fn func(ctx context.Context, taskID, userID int64) error) {
	uid, ok := userID(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "Missing user identity")
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		writeError(ctx, fasthttp.StatusBadRequest, "BAD_REQUEST", "Invalid task id")
		return
	}

	if err := fn(ctx, id, uid); err != nil {
		h.writeServiceError(ctx, err)
		return
	}

	writeData(ctx, fasthttp.StatusOK, map[string]int64{"id": id})
}

func (h *taskHandler) writeServiceError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, taskService.ErrNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "NOT_FOUND", "Task not found")
	case errors.Is(err, taskService.ErrEmptyTitle), errors.Is(err, taskService.ErrPastDeadline):
		writeError(ctx, fasthttp.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		log.WithError(err).Error("Task mutation failed")
		writeError(ctx, fasthttp.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred, please try again")
	}
}
