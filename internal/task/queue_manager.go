package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/store"
)

// QueueManager hands out pending tasks to workers. A claim pops the head of
// the pending set and moves the record from pending to processing with a
// compare-and-set; only the caller whose update succeeds owns the task.
type QueueManager struct {
	set    PendingSet
	store  store.TaskStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	leases  map[uuid.UUID]Lease
	cancels map[uuid.UUID]boundCancel

	wake chan struct{}
}

// NewQueueManager creates a QueueManager over set and taskStore.
func NewQueueManager(set PendingSet, taskStore store.TaskStore, logger *slog.Logger) *QueueManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueManager{
		set:     set,
		store:   taskStore,
		logger:  logger.With("component", "queue_manager"),
		now:     func() time.Time { return time.Now().UTC() },
		leases:  make(map[uuid.UUID]Lease),
		cancels: make(map[uuid.UUID]boundCancel),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue adds a pending task, ordered by its creation time. Enqueueing a
// task that is already queued is a no-op.
func (q *QueueManager) Enqueue(ctx context.Context, taskID uuid.UUID, createdAt time.Time) error {
	added, err := q.set.Add(ctx, taskID, scoreOf(createdAt))
	if err != nil {
		return fmt.Errorf("enqueue task %s: %w", taskID, err)
	}
	if added {
		logger.FromContextOr(ctx, q.logger).Debug("task enqueued", "task_id", taskID)
		q.signal()
	}
	return nil
}

// Release puts a task that went back to pending at the tail of the ordering.
// The lease of the failed attempt is cleared by the caller; a claim made
// since is kept.
func (q *QueueManager) Release(ctx context.Context, taskID uuid.UUID) error {
	added, err := q.set.Add(ctx, taskID, scoreOf(q.now()))
	if err != nil {
		return fmt.Errorf("release task %s: %w", taskID, err)
	}
	if added {
		logger.FromContextOr(ctx, q.logger).Debug("task released", "task_id", taskID)
		q.signal()
	}
	return nil
}

// Remove drops a task from the pending set and forgets its lease.
func (q *QueueManager) Remove(ctx context.Context, taskID uuid.UUID) error {
	q.ClearLease(taskID)

	if err := q.set.Remove(ctx, taskID); err != nil {
		return fmt.Errorf("remove task %s: %w", taskID, err)
	}
	return nil
}

// Claim takes the oldest claimable task for workerID.
//
// Ids whose compare-and-set loses (claimed elsewhere, deleted, or no longer
// pending) are dropped and the next id is tried. Any other storage error puts
// the id back and is returned. ErrQueueEmpty means nothing was claimable.
func (q *QueueManager) Claim(ctx context.Context, workerID string) (*domain.Task, error) {
	log := logger.FromContextOr(ctx, q.logger).With("worker_id", workerID)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, score, ok, err := q.set.PopMin(ctx)
		if err != nil {
			return nil, fmt.Errorf("pop pending task: %w", err)
		}
		if !ok {
			return nil, ErrQueueEmpty
		}

		now := q.now()
		t, err := q.store.UpdateStatus(ctx, id, domain.TaskStatusPending, domain.TaskStatusProcessing,
			store.TaskUpdate{StartedAt: &now})
		switch {
		case err == nil:
			q.mu.Lock()
			q.leases[id] = Lease{WorkerID: workerID, Attempt: t.Attempts, ClaimedAt: now}
			q.mu.Unlock()

			log.Info("task claimed", "task_id", id, "attempts", t.Attempts)
			return t, nil

		case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrTaskNotFound):
			log.Debug("discarding stale queue entry", "task_id", id, "reason", err)
			continue

		default:
			if _, addErr := q.set.Add(context.WithoutCancel(ctx), id, score); addErr != nil {
				log.Error("failed to restore queue entry after claim error",
					"task_id", id,
					"error", addErr)
			}
			return nil, fmt.Errorf("claim task %s: %w", id, err)
		}
	}
}

// Lease returns the lease held on taskID, if any.
func (q *QueueManager) Lease(taskID uuid.UUID) (Lease, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.leases[taskID]
	return l, ok
}

// ClearLease forgets the lease and cancel function of taskID.
func (q *QueueManager) ClearLease(taskID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.leases, taskID)
	delete(q.cancels, taskID)
}

// clearAttempt forgets the lease and cancel function of taskID only while
// they still belong to attempt, leaving those of a later claim alone.
func (q *QueueManager) clearAttempt(taskID uuid.UUID, attempt int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if l, ok := q.leases[taskID]; ok && l.Attempt == attempt {
		delete(q.leases, taskID)
	}
	if b, ok := q.cancels[taskID]; ok && b.attempt == attempt {
		delete(q.cancels, taskID)
	}
}

type boundCancel struct {
	attempt int
	cancel  context.CancelFunc
}

// BindCancel associates the cancel function of an in-flight translation
// with attempt of taskID so that Cancel can stop it early.
func (q *QueueManager) BindCancel(taskID uuid.UUID, attempt int, cancel context.CancelFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cancels[taskID] = boundCancel{attempt: attempt, cancel: cancel}
}

// Cancel stops the in-flight translation of taskID, if this process runs one.
func (q *QueueManager) Cancel(taskID uuid.UUID) {
	q.mu.Lock()
	b, ok := q.cancels[taskID]
	q.mu.Unlock()

	if ok {
		b.cancel()
	}
}

// takeCancel removes and returns the cancel function bound to attempt of
// taskID, or nil.
func (q *QueueManager) takeCancel(taskID uuid.UUID, attempt int) context.CancelFunc {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.cancels[taskID]
	if !ok || b.attempt != attempt {
		return nil
	}
	delete(q.cancels, taskID)
	return b.cancel
}

// Contains reports whether taskID is waiting in the pending set.
func (q *QueueManager) Contains(ctx context.Context, taskID uuid.UUID) (bool, error) {
	return q.set.Contains(ctx, taskID)
}

// Len returns the number of queued tasks.
func (q *QueueManager) Len(ctx context.Context) (int, error) {
	return q.set.Len(ctx)
}

// Wake is signalled when work is added. Idle workers select on it alongside
// their poll timer.
func (q *QueueManager) Wake() <-chan struct{} {
	return q.wake
}

func (q *QueueManager) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
