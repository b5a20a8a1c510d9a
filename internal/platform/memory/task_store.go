// Package memory provides an in-process implementation of store.TaskStore.
// It is used for single-process deployments and throughout the tests; the
// compare-and-set semantics are identical to the PostgreSQL store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/store"
)

// TaskStore holds all tasks in memory, protected by a mutex. Every method
// hands out copies so that callers can never mutate stored state without
// going through UpdateStatus.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
	now   func() time.Time

	// seq records insertion order and breaks CreatedAt ties, like the
	// serial key of the SQL table.
	seq     map[uuid.UUID]uint64
	nextSeq uint64
}

// Ensure TaskStore implements store.TaskStore
var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates an empty task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
		now:   func() time.Time { return time.Now().UTC() },
		seq:   make(map[uuid.UUID]uint64),
	}
}

// Create saves a new task.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	s.tasks[task.ID] = task.Clone()
	s.nextSeq++
	s.seq[task.ID] = s.nextSeq
	return nil
}

// GetByID retrieves a task by its ID.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// ListByUser returns the user's tasks ordered by CreatedAt descending.
func (s *TaskStore) ListByUser(ctx context.Context, userID string) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.UserID == userID {
			result = append(result, t.Clone())
		}
	}

	slices.SortFunc(result, func(a, b *domain.Task) int {
		return -s.compare(a, b)
	})
	return result, nil
}

// UpdateStatus performs the compare-and-set status change under the store lock.
func (s *TaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	if err := domain.ValidateTransition(expected, next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if t.Status != expected || !update.Matches(t) {
		return nil, store.ErrConflict
	}

	t.Status = next
	update.Apply(t)
	t.UpdatedAt = s.now()

	return t.Clone(), nil
}

// Delete removes a task; missing tasks are ignored.
func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	delete(s.seq, id)
	return nil
}

// GetPendingTasks retrieves all pending tasks, oldest first.
func (s *TaskStore) GetPendingTasks(ctx context.Context) ([]*domain.Task, error) {
	return s.byStatus(domain.TaskStatusPending, 0), nil
}

// GetProcessingTasks retrieves processing tasks, optionally only those that
// started more than olderThan ago.
func (s *TaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*domain.Task, error) {
	return s.byStatus(domain.TaskStatusProcessing, olderThan), nil
}

func (s *TaskStore) byStatus(status domain.TaskStatus, olderThan time.Duration) []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-olderThan)
	var result []*domain.Task
	for _, t := range s.tasks {
		if t.Status != status {
			continue
		}
		if olderThan > 0 && (t.StartedAt == nil || !t.StartedAt.Before(cutoff)) {
			continue
		}
		result = append(result, t.Clone())
	}

	slices.SortFunc(result, s.compare)
	return result
}

// compare orders tasks by CreatedAt, then insertion order. Callers hold mu.
func (s *TaskStore) compare(a, b *domain.Task) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(s.seq[a.ID], s.seq[b.ID])
}
