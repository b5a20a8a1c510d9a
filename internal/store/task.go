package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/domain"
)

// DBTX is an interface that abstracts the database access layer.
// It is implemented by both *sql.DB and *sql.Tx, allowing our code
// to work with either a database connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TaskUpdate carries the fields written atomically with a status change.
// Nil fields leave the stored value untouched.
type TaskUpdate struct {
	MarkdownPath      *string
	Confidence        *float64
	ErrorMessage      *string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	IncrementAttempts bool

	// ClearTimestamps resets StartedAt and CompletedAt, used when a failed
	// task goes back to pending. It takes precedence over the pointers.
	ClearTimestamps bool

	// ExpectedAttempts narrows the compare-and-set to one processing
	// attempt: when set, the update only applies if the stored attempt
	// counter still equals it. It is not written.
	ExpectedAttempts *int
}

// Matches reports whether t satisfies the attempt guard of the update.
func (u TaskUpdate) Matches(t *domain.Task) bool {
	return u.ExpectedAttempts == nil || *u.ExpectedAttempts == t.Attempts
}

// ForAttempt sets ExpectedAttempts and returns the update.
func (u TaskUpdate) ForAttempt(attempts int) TaskUpdate {
	u.ExpectedAttempts = &attempts
	return u
}

// Apply copies the update onto t. Store implementations that keep tasks in
// memory use it so they share the exact semantics of the SQL update.
func (u TaskUpdate) Apply(t *domain.Task) {
	if u.MarkdownPath != nil {
		t.MarkdownPath = *u.MarkdownPath
	}
	if u.Confidence != nil {
		v := *u.Confidence
		t.Confidence = &v
	}
	if u.ErrorMessage != nil {
		t.ErrorMessage = *u.ErrorMessage
	}
	if u.StartedAt != nil {
		v := *u.StartedAt
		t.StartedAt = &v
	}
	if u.CompletedAt != nil {
		v := *u.CompletedAt
		t.CompletedAt = &v
	}
	if u.IncrementAttempts {
		t.Attempts++
	}
	if u.ClearTimestamps {
		t.StartedAt = nil
		t.CompletedAt = nil
	}
}

// TaskStore defines the interface for translation task persistence.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors from the domain Task if data is invalid,
	// or ErrDuplicate if a task with the same ID already exists.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListByUser returns all tasks owned by the user, newest first.
	// Returns an empty slice if the user has no tasks.
	ListByUser(ctx context.Context, userID string) ([]*domain.Task, error)

	// UpdateStatus moves a task from expected to next and writes the extra
	// fields in the same atomic step. It is a compare-and-set:
	//   - domain.ErrInvalidTransition if expected→next is not a legal edge
	//   - ErrTaskNotFound if the task does not exist
	//   - ErrConflict if the stored status is not expected, or the stored
	//     attempt counter differs from update.ExpectedAttempts
	// On success the updated task is returned.
	UpdateStatus(
		ctx context.Context,
		id uuid.UUID,
		expected, next domain.TaskStatus,
		update TaskUpdate,
	) (*domain.Task, error)

	// Delete removes a task. Deleting a missing task is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// GetPendingTasks retrieves all tasks with "pending" status, oldest first.
	GetPendingTasks(ctx context.Context) ([]*domain.Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status.
	// If olderThan is non-zero, only returns tasks that started processing
	// longer than the specified duration ago.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*domain.Task, error)
}
