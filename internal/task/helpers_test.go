package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/artifact"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/platform/memory"
	"github.com/phrazzld/lingo-api/internal/store"
	"github.com/stretchr/testify/require"
)

var errStorageDown = errors.New("storage down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires the task package over the in-memory store and a temporary
// artifact directory.
type harness struct {
	store     *flakyStore
	artifacts *artifact.FileStore
	set       *MemoryPendingSet
	queue     *QueueManager
	lifecycle *Lifecycle
}

func newHarness(t *testing.T, maxAttempts int) *harness {
	t.Helper()

	artifacts, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)

	st := &flakyStore{TaskStore: memory.NewTaskStore()}
	set := NewMemoryPendingSet()
	queue := NewQueueManager(set, st, discardLogger())
	lifecycle := NewLifecycle(st, artifacts, queue, RetryPolicy{MaxAttempts: maxAttempts}, discardLogger())

	return &harness{
		store:     st,
		artifacts: artifacts,
		set:       set,
		queue:     queue,
		lifecycle: lifecycle,
	}
}

// submit creates and enqueues an inline-content task.
func (h *harness) submit(t *testing.T, content string) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(domain.TaskSpec{
		UserID:         "user-1",
		SourceLanguage: "en",
		TargetLanguage: "de",
		SourceContent:  content,
	})
	require.NoError(t, err)
	require.NoError(t, h.lifecycle.Submit(context.Background(), task))

	// Distinct creation times keep FIFO order deterministic.
	time.Sleep(time.Millisecond)
	return task
}

func (h *harness) get(t *testing.T, id uuid.UUID) *domain.Task {
	t.Helper()

	task, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return task
}

// flakyStore fails UpdateStatus while failUpdates is set. afterUpdate, when
// set before use, runs after every successful UpdateStatus. pendingSnapshot,
// when set, is returned by GetPendingTasks instead of the live listing.
type flakyStore struct {
	store.TaskStore
	failUpdates     atomic.Bool
	afterUpdate     func(t *domain.Task)
	pendingSnapshot []*domain.Task
}

func (s *flakyStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	if s.failUpdates.Load() {
		return nil, errStorageDown
	}
	t, err := s.TaskStore.UpdateStatus(ctx, id, expected, next, update)
	if err == nil && s.afterUpdate != nil {
		s.afterUpdate(t)
	}
	return t, err
}

func (s *flakyStore) GetPendingTasks(ctx context.Context) ([]*domain.Task, error) {
	if s.pendingSnapshot != nil {
		return s.pendingSnapshot, nil
	}
	return s.TaskStore.GetPendingTasks(ctx)
}
