package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/questboard-api/internal/domain"
	"github.com/phrazzld/questboard-api/internal/platform/logger"
	"github.com/phrazzld/questboard-api/internal/service/assignment"
	"github.com/phrazzld/questboard-api/internal/store"
)

// NewTaskInput carries the fields an admin supplies for a new task.
type NewTaskInput struct {
	Complexity   domain.Rank
	Description  string
	ExpectedTime float64
	Tags         []string
}

// TaskService manages the task catalogue. Every operation is admin-only.
type TaskService interface {
	// Create adds a task to the board.
	// Returns ErrForbidden for non-admins and a domain.ErrValidation error
	// for bad input.
	Create(ctx context.Context, actorID int64, input NewTaskInput) (*domain.Task, error)

	// Delete removes a task that has not been completed.
	// Returns ErrForbidden for non-admins, store.ErrTaskNotFound if the task
	// does not exist and assignment.ErrAlreadyCompleted if it has been
	// completed.
	Delete(ctx context.Context, actorID, taskID int64) error
}

type taskServiceImpl struct {
	tasks  store.TaskStore
	users  store.UserStore
	logger *slog.Logger
}

// Verify interface compliance at compile time
var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService creates a TaskService.
func NewTaskService(tasks store.TaskStore, users store.UserStore, logger *slog.Logger) TaskService {
	if tasks == nil || users == nil {
		// ALLOW-PANIC: constructor misuse
		panic("task service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &taskServiceImpl{
		tasks:  tasks,
		users:  users,
		logger: logger.With(slog.String("component", "task_service")),
	}
}

// Create implements TaskService.Create.
func (s *taskServiceImpl) Create(ctx context.Context, actorID int64, input NewTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := requireAdmin(ctx, s.users, actorID); err != nil {
		return nil, err
	}

	task, err := domain.NewTask(input.Complexity, input.Description, input.ExpectedTime, input.Tags)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.Int64("actor_id", actorID),
		slog.String("complexity", task.Complexity.String()))
	return task, nil
}

// Delete implements TaskService.Delete.
func (s *taskServiceImpl) Delete(ctx context.Context, actorID, taskID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := requireAdmin(ctx, s.users, actorID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrTaskCompleted) {
			return assignment.ErrAlreadyCompleted
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	log.Info("task deleted",
		slog.Int64("task_id", taskID),
		slog.Int64("actor_id", actorID))
	return nil
}

// requireAdmin returns ErrForbidden unless actorID is an administrator.
func requireAdmin(ctx context.Context, users store.UserStore, actorID int64) error {
	actor, err := users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to load actor: %w", err)
	}
	if !actor.IsAdmin {
		return ErrForbidden
	}
	return nil
}
