package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/artifact"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/store"
)

// TaskLifecycle is the part of task.Lifecycle the service drives.
type TaskLifecycle interface {
	// Submit persists a new pending task and enqueues it
	Submit(ctx context.Context, t *domain.Task) error

	// Delete removes a task, its queue entry and its artifacts
	Delete(ctx context.Context, taskID uuid.UUID) error
}

// TaskReader is the read side of store.TaskStore.
type TaskReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Task, error)
}

// CreateTaskInput describes a new translation request. Content holds inline
// text, File an uploaded document; at least one must be set.
type CreateTaskInput struct {
	UserID         string
	SourceLanguage string
	TargetLanguage string
	Content        string
	File           []byte
}

// TaskService provides translation task operations
type TaskService interface {
	// CreateTask stores the uploaded source (if any), creates a pending task
	// and enqueues it
	CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error)

	// GetTask returns a task owned by userID
	GetTask(ctx context.Context, userID string, taskID uuid.UUID) (*domain.Task, error)

	// ListTasksForUser returns the user's tasks, newest first
	ListTasksForUser(ctx context.Context, userID string) ([]*domain.Task, error)

	// DeleteTask removes a task owned by userID. Deleting an absent task succeeds.
	DeleteTask(ctx context.Context, userID string, taskID uuid.UUID) error

	// GetTaskResult returns the translated markdown of a completed task
	GetTaskResult(ctx context.Context, userID string, taskID uuid.UUID) ([]byte, error)
}

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task", "delete_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// It returns known sentinel errors directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, ErrNotOwned):
		return ErrNotOwned
	case errors.Is(err, ErrTaskNotReady):
		return ErrTaskNotReady
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks     TaskReader
	lifecycle TaskLifecycle
	artifacts artifact.Store
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks TaskReader,
	lifecycle TaskLifecycle,
	artifacts artifact.Store,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "tasks cannot be nil"}
	}
	if lifecycle == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "lifecycle cannot be nil"}
	}
	if artifacts == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "artifacts cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:     tasks,
		lifecycle: lifecycle,
		artifacts: artifacts,
		logger:    logger.With("component", "task_service"),
	}, nil
}

// CreateTask validates the request, stores an uploaded file as the task's
// source artifact and submits the task. The artifact is removed again if the
// task cannot be created.
func (s *taskServiceImpl) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOr(ctx, s.logger).With("user_id", input.UserID)

	spec := domain.TaskSpec{
		ID:             uuid.New(),
		UserID:         input.UserID,
		SourceLanguage: input.SourceLanguage,
		TargetLanguage: input.TargetLanguage,
		SourceContent:  input.Content,
	}

	// Validate before touching storage.
	if len(input.File) > 0 {
		spec.SourceFilePath = artifact.SourceFile
	}
	if _, err := domain.NewTask(spec); err != nil {
		return nil, err
	}

	stored := false
	if len(input.File) > 0 {
		path, err := s.artifacts.Store(ctx, spec.ID, artifact.SourceFile, input.File)
		if err != nil {
			log.Error("failed to store source file", "task_id", spec.ID, "error", err)
			return nil, NewTaskServiceError("create_task", "failed to store source file", err)
		}
		spec.SourceFilePath = path
		stored = true
	}

	t, err := domain.NewTask(spec)
	if err == nil {
		err = s.lifecycle.Submit(ctx, t)
	}
	if err != nil {
		if stored {
			if purgeErr := s.artifacts.Purge(ctx, spec.ID); purgeErr != nil {
				log.Error("failed to remove source file of rejected task",
					"task_id", spec.ID,
					"error", purgeErr)
			}
		}
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		log.Error("failed to create task", "task_id", spec.ID, "error", err)
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created", "task_id", t.ID)
	return t, nil
}

// GetTask returns a task owned by userID.
func (s *taskServiceImpl) GetTask(ctx context.Context, userID string, taskID uuid.UUID) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			logger.FromContextOr(ctx, s.logger).Error("failed to retrieve task",
				"task_id", taskID,
				"error", err)
		}
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}

	if t.UserID != userID {
		return nil, ErrNotOwned
	}
	return t, nil
}

// ListTasksForUser returns the user's tasks, newest first.
func (s *taskServiceImpl) ListTasksForUser(ctx context.Context, userID string) ([]*domain.Task, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to list tasks",
			"user_id", userID,
			"error", err)
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nil
}

// DeleteTask removes a task owned by userID. An absent task is treated as
// already deleted.
func (s *taskServiceImpl) DeleteTask(ctx context.Context, userID string, taskID uuid.UUID) error {
	_, err := s.GetTask(ctx, userID, taskID)
	switch {
	case err == nil:
	case errors.Is(err, ErrTaskNotFound):
		// Clean up anything a partial earlier deletion left behind.
	default:
		return err
	}

	if err := s.lifecycle.Delete(ctx, taskID); err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to delete task",
			"task_id", taskID,
			"error", err)
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}
	return nil
}

// GetTaskResult returns the translated markdown of a completed task.
func (s *taskServiceImpl) GetTaskResult(ctx context.Context, userID string, taskID uuid.UUID) ([]byte, error) {
	t, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if t.Status != domain.TaskStatusCompleted || t.MarkdownPath == "" {
		return nil, ErrTaskNotReady
	}

	data, err := s.artifacts.Read(ctx, t.MarkdownPath)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to read task result",
			"task_id", taskID,
			"path", t.MarkdownPath,
			"error", err)
		return nil, NewTaskServiceError("get_task_result", "failed to read result", err)
	}
	return data, nil
}
