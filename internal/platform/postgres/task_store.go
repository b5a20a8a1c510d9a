package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/store"
)

// taskColumns is the column list shared by every query that returns a task.
const taskColumns = `task_id, user_id, status, source_language, target_language,
	source_content, source_file_path, markdown_path, confidence, attempts,
	error_message, created_at, started_at, completed_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresTaskStore implements store.TaskStore
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With("component", "task_store"),
	}
}

// Create persists a new task to the database
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOr(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO translation_tasks (
			task_id, user_id, status, source_language, target_language,
			source_content, source_file_path, attempts, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.UserID,
		task.Status,
		task.SourceLanguage,
		task.TargetLanguage,
		task.SourceContent,
		task.SourceFilePath,
		task.Attempts,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"user_id", task.UserID,
			"error", err)
		if IsUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return store.NewStoreError("task", "create", "failed to insert task", MapError(err))
	}

	return nil
}

// GetByID retrieves a task by its external task ID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM translation_tasks WHERE task_id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOr(ctx, s.logger).Error("failed to get task",
			"task_id", id,
			"error", err)
		return nil, store.NewStoreError("task", "get", "failed to query task", MapError(err))
	}

	return task, nil
}

// ListByUser returns the user's tasks, newest first
func (s *PostgresTaskStore) ListByUser(ctx context.Context, userID string) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM translation_tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	return s.queryTasks(ctx, "list_by_user", query, userID)
}

// UpdateStatus performs a compare-and-set status change.
//
// The status guard lives in the WHERE clause so that two concurrent callers
// can never both observe success. When no row is updated a follow-up lookup
// distinguishes a deleted task from a lost race.
func (s *PostgresTaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	log := logger.FromContextOr(ctx, s.logger)

	if err := domain.ValidateTransition(expected, next); err != nil {
		return nil, err
	}

	attemptDelta := 0
	if update.IncrementAttempts {
		attemptDelta = 1
	}

	query := `
		UPDATE translation_tasks
		SET status = $1,
			markdown_path = COALESCE($2, markdown_path),
			confidence = COALESCE($3, confidence),
			error_message = COALESCE($4, error_message),
			started_at = CASE WHEN $11 THEN NULL ELSE COALESCE($5, started_at) END,
			completed_at = CASE WHEN $11 THEN NULL ELSE COALESCE($6, completed_at) END,
			attempts = attempts + $7,
			updated_at = $8
		WHERE task_id = $9 AND status = $10
			AND ($12::integer IS NULL OR attempts = $12)
		RETURNING ` + taskColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query,
		next,
		update.MarkdownPath,
		update.Confidence,
		update.ErrorMessage,
		update.StartedAt,
		update.CompletedAt,
		attemptDelta,
		time.Now().UTC(),
		id,
		expected,
		update.ClearTimestamps,
		update.ExpectedAttempts,
	))
	if err == nil {
		return task, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to update task status",
			"task_id", id,
			"expected_status", expected,
			"status", next,
			"error", err)
		return nil, store.NewStoreError("task", "update_status", "failed to update task status", MapError(err))
	}

	var (
		current  domain.TaskStatus
		attempts int
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT status, attempts FROM translation_tasks WHERE task_id = $1`, id).Scan(&current, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task", "update_status", "failed to read current status", MapError(err))
	}

	log.Debug("task status compare-and-set lost",
		"task_id", id,
		"expected_status", expected,
		"current_status", current,
		"attempts", attempts,
		"status", next)
	if current == expected && update.ExpectedAttempts != nil {
		return nil, fmt.Errorf("%w: task %s is on attempt %d, expected %d",
			store.ErrConflict, id, attempts, *update.ExpectedAttempts)
	}
	return nil, fmt.Errorf("%w: task %s is %s, expected %s", store.ErrConflict, id, current, expected)
}

// Delete removes a task. Deleting a missing task is a no-op.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_tasks WHERE task_id = $1`, id)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("failed to delete task",
			"task_id", id,
			"error", err)
		return store.NewStoreError("task", "delete", "failed to delete task", MapError(err))
	}
	return nil
}

// GetPendingTasks retrieves all tasks with "pending" status
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM translation_tasks
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`
	return s.queryTasks(ctx, "get_pending", query, domain.TaskStatusPending)
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*domain.Task, error) {
	if olderThan > 0 {
		query := `
			SELECT ` + taskColumns + `
			FROM translation_tasks
			WHERE status = $1 AND started_at < $2
			ORDER BY created_at ASC, id ASC
		`
		return s.queryTasks(ctx, "get_processing", query,
			domain.TaskStatusProcessing, time.Now().UTC().Add(-olderThan))
	}

	query := `
		SELECT ` + taskColumns + `
		FROM translation_tasks
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`
	return s.queryTasks(ctx, "get_processing", query, domain.TaskStatusProcessing)
}

// queryTasks runs a query returning task rows and scans all of them.
func (s *PostgresTaskStore) queryTasks(ctx context.Context, operation, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContextOr(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			"operation", operation,
			"error", err)
		return nil, store.NewStoreError("task", operation, "failed to query tasks", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				"operation", operation,
				"error", err)
			return nil, store.NewStoreError("task", operation, "failed to scan task row", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			"operation", operation,
			"error", err)
		return nil, store.NewStoreError("task", operation, "error iterating task rows", err)
	}

	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one row in taskColumns order to a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		confidence  sql.NullFloat64
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Status,
		&task.SourceLanguage,
		&task.TargetLanguage,
		&task.SourceContent,
		&task.SourceFilePath,
		&task.MarkdownPath,
		&confidence,
		&task.Attempts,
		&task.ErrorMessage,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if confidence.Valid {
		v := confidence.Float64
		task.Confidence = &v
	}
	if startedAt.Valid {
		v := startedAt.Time
		task.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		task.CompletedAt = &v
	}

	return &task, nil
}
