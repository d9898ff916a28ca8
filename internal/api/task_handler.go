package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/questboard-api/internal/api/shared"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/service/completion"
)

// TaskHandler handles task lifecycle requests: admin create and delete,
// and the claim, release and complete transitions.
type TaskHandler struct {
	tasks     service.TaskService
	manager   assignment.Manager
	processor completion.Processor
	logger    *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(
	tasks service.TaskService,
	manager assignment.Manager,
	processor completion.Processor,
	logger *slog.Logger,
) *TaskHandler {
	if tasks == nil || manager == nil || processor == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("task handler dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		tasks:     tasks,
		manager:   manager,
		processor: processor,
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), userID, service.NewTaskInput{
		Complexity:   *req.Complexity,
		Description:  req.Description,
		ExpectedTime: req.ExpectedTime,
		Tags:         req.Tags,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), userID, taskID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClaimTask handles POST /api/tasks/{id}/claim.
func (h *TaskHandler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	if err := h.manager.Claim(r.Context(), taskID, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to claim task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReleaseTask handles POST /api/tasks/{id}/release.
func (h *TaskHandler) ReleaseTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	if err := h.manager.Release(r.Context(), taskID, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to release task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask handles POST /api/tasks/{id}/complete and returns the
// completion result, including any class change.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	result, err := h.processor.Complete(r.Context(), taskID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to complete task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}
