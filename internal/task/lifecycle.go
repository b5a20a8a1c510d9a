package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/artifact"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/store"
	"github.com/phrazzld/lingo-api/internal/translation"
)

// ReasonLeaseExpired is recorded on tasks failed by the lease sweep.
const ReasonLeaseExpired = "lease expired"

// RetryPolicy bounds how many times a failed task is put back in the queue.
type RetryPolicy struct {
	// MaxAttempts is the total number of processing attempts a task may get.
	MaxAttempts int
}

// ShouldRetry reports whether a failed task gets another attempt.
func (p RetryPolicy) ShouldRetry(t *domain.Task) bool {
	return t.Attempts+1 < p.MaxAttempts
}

// Outcome is what a worker reports after processing a claimed task.
// Exactly one of Result and Err is set.
type Outcome struct {
	Result *translation.Result
	Err    error
}

// Succeeded builds a successful Outcome.
func Succeeded(result *translation.Result) Outcome {
	return Outcome{Result: result}
}

// Failed builds a failed Outcome.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

// Lifecycle owns every status transition after a claim, plus deletion.
type Lifecycle struct {
	store     store.TaskStore
	artifacts artifact.Store
	queue     *QueueManager
	policy    RetryPolicy
	logger    *slog.Logger
	now       func() time.Time
}

// NewLifecycle wires a Lifecycle.
func NewLifecycle(
	taskStore store.TaskStore,
	artifacts artifact.Store,
	queue *QueueManager,
	policy RetryPolicy,
	logger *slog.Logger,
) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Lifecycle{
		store:     taskStore,
		artifacts: artifacts,
		queue:     queue,
		policy:    policy,
		logger:    logger.With("component", "task_lifecycle"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit persists a new pending task and enqueues it. A failed enqueue is
// logged only: the record is the source of truth and the sweep re-enqueues
// pending tasks missing from the queue.
func (l *Lifecycle) Submit(ctx context.Context, t *domain.Task) error {
	if err := l.store.Create(ctx, t); err != nil {
		return err
	}

	if err := l.queue.Enqueue(ctx, t.ID, t.CreatedAt); err != nil {
		logger.FromContextOr(ctx, l.logger).Error("failed to enqueue new task",
			"task_id", t.ID,
			"error", err)
	}
	return nil
}

// ClaimNext claims the oldest pending task for workerID.
func (l *Lifecycle) ClaimNext(ctx context.Context, workerID string) (*domain.Task, error) {
	return l.queue.Claim(ctx, workerID)
}

// ReportOutcome records the result of processing claimed, the task as
// returned by ClaimNext.
//
// On success the markdown artifact is written first and the task moves to
// completed together with its path, confidence and completion time. On
// failure the task moves to failed and the retry policy decides whether it
// returns to the queue. Translation failures are recorded, not returned.
//
// Every update is guarded by the claimed attempt. If the task is no longer
// processing that attempt when the report arrives (lease expired, retried,
// deleted), the report is dropped, the output written for it is removed and
// ErrOutcomeDiscarded is returned.
func (l *Lifecycle) ReportOutcome(ctx context.Context, claimed *domain.Task, outcome Outcome) (*domain.Task, error) {
	defer l.queue.clearAttempt(claimed.ID, claimed.Attempts)

	if outcome.Err == nil && outcome.Result != nil {
		return l.complete(ctx, claimed, outcome.Result)
	}

	err := outcome.Err
	if err == nil {
		err = errors.New("no translation result")
	}
	return l.fail(ctx, claimed, err.Error())
}

func (l *Lifecycle) complete(ctx context.Context, claimed *domain.Task, result *translation.Result) (*domain.Task, error) {
	log := logger.FromContextOr(ctx, l.logger).With("task_id", claimed.ID, "attempts", claimed.Attempts)

	path, err := l.artifacts.Store(ctx, claimed.ID, artifact.OutputFile(claimed.Attempts),
		[]byte(result.TranslatedContent))
	if err != nil {
		log.Error("failed to store translation output", "error", err)
		return l.fail(ctx, claimed, fmt.Sprintf("store output: %v", err))
	}

	now := l.now()
	confidence := result.Confidence
	t, err := l.store.UpdateStatus(ctx, claimed.ID, domain.TaskStatusProcessing, domain.TaskStatusCompleted,
		store.TaskUpdate{
			MarkdownPath: &path,
			Confidence:   &confidence,
			CompletedAt:  &now,
		}.ForAttempt(claimed.Attempts))
	if err == nil {
		log.Info("task completed", "confidence", confidence)
		return t, nil
	}

	// The record did not take this attempt's output.
	if delErr := l.artifacts.Delete(ctx, path); delErr != nil {
		log.Error("failed to remove discarded output", "path", path, "error", delErr)
	}

	if isLostRace(err) {
		log.Info("discarding completion report", "reason", err)
		if errors.Is(err, store.ErrTaskNotFound) {
			l.purge(ctx, claimed.ID)
		}
		return nil, fmt.Errorf("%w: %w", ErrOutcomeDiscarded, err)
	}

	log.Error("failed to record task completion", "error", err)
	return nil, err
}

func (l *Lifecycle) fail(ctx context.Context, claimed *domain.Task, reason string) (*domain.Task, error) {
	log := logger.FromContextOr(ctx, l.logger).With("task_id", claimed.ID, "attempts", claimed.Attempts)

	now := l.now()
	t, err := l.store.UpdateStatus(ctx, claimed.ID, domain.TaskStatusProcessing, domain.TaskStatusFailed,
		store.TaskUpdate{
			ErrorMessage: &reason,
			CompletedAt:  &now,
		}.ForAttempt(claimed.Attempts))
	if err != nil {
		if isLostRace(err) {
			log.Info("discarding failure report", "reason", err)
			return nil, fmt.Errorf("%w: %w", ErrOutcomeDiscarded, err)
		}
		log.Error("failed to record task failure", "error", err)
		return nil, err
	}

	log.Warn("task failed", "error_message", reason)
	return l.Retry(ctx, t)
}

// Retry applies the retry policy to a failed task. When another attempt is
// allowed the task moves back to pending with its attempt counter
// incremented and is released to the tail of the queue; otherwise it is
// returned unchanged and stays failed.
func (l *Lifecycle) Retry(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	log := logger.FromContextOr(ctx, l.logger).With("task_id", t.ID)

	if t.Status != domain.TaskStatusFailed {
		return nil, fmt.Errorf("%w: retry of %s task", domain.ErrInvalidTransition, t.Status)
	}

	if !l.policy.ShouldRetry(t) {
		log.Warn("task failed permanently",
			"attempts", t.Attempts+1,
			"max_attempts", l.policy.MaxAttempts)
		return t, nil
	}

	requeued, err := l.store.UpdateStatus(ctx, t.ID, domain.TaskStatusFailed, domain.TaskStatusPending,
		store.TaskUpdate{IncrementAttempts: true, ClearTimestamps: true}.ForAttempt(t.Attempts))
	if err != nil {
		if isLostRace(err) {
			log.Info("skipping retry", "reason", err)
			return nil, fmt.Errorf("%w: %w", ErrOutcomeDiscarded, err)
		}
		return nil, err
	}

	if err := l.queue.Release(ctx, t.ID); err != nil {
		// The task is pending in the store; the sweep will enqueue it.
		log.Error("failed to release task to queue", "error", err)
	}

	// A deletion that ran between the status change and the release has
	// already cleared the queue; take back the entry just added.
	if _, err := l.store.GetByID(ctx, t.ID); store.IsNotFoundError(err) {
		log.Info("task deleted during retry")
		if err := l.queue.Remove(ctx, t.ID); err != nil {
			log.Error("failed to remove deleted task from queue", "error", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrOutcomeDiscarded, err)
	}

	log.Info("task scheduled for retry", "attempts", requeued.Attempts)
	return requeued, nil
}

// ExpireLease fails t, a task the sweep found processing past its lease,
// stops its in-flight translation if it runs in this process, and applies
// the retry policy. The update is guarded by t's attempt, so a task that
// left processing or was claimed again since is left alone.
func (l *Lifecycle) ExpireLease(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	cancel := l.queue.takeCancel(t.ID, t.Attempts)
	defer l.queue.clearAttempt(t.ID, t.Attempts)

	// The record is failed before the worker is interrupted so that its
	// report loses the compare-and-set instead of recording the cancellation.
	expired, err := l.fail(ctx, t, ReasonLeaseExpired)
	if cancel != nil {
		cancel()
	}
	return expired, err
}

// Delete removes a task in any state: queue entry, then artifacts, then the
// record. Every step tolerates its target being absent, so repeated or
// concurrent deletions converge. Artifact removal failures are logged and do
// not stop the record from being deleted.
func (l *Lifecycle) Delete(ctx context.Context, taskID uuid.UUID) error {
	log := logger.FromContextOr(ctx, l.logger).With("task_id", taskID)

	if err := l.queue.Remove(ctx, taskID); err != nil {
		log.Error("failed to remove task from queue", "error", err)
	}
	l.queue.Cancel(taskID)

	t, err := l.store.GetByID(ctx, taskID)
	switch {
	case err == nil:
		for _, path := range []string{t.SourceFilePath, t.MarkdownPath} {
			if path == "" {
				continue
			}
			if err := l.artifacts.Delete(ctx, path); err != nil {
				log.Error("failed to delete artifact", "path", path, "error", err)
			}
		}
	case store.IsNotFoundError(err):
		log.Debug("task record already absent")
	default:
		return fmt.Errorf("load task for deletion: %w", err)
	}

	l.purge(ctx, taskID)

	if err := l.store.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("delete task record: %w", err)
	}

	log.Info("task deleted")
	return nil
}

func (l *Lifecycle) purge(ctx context.Context, taskID uuid.UUID) {
	if err := l.artifacts.Purge(ctx, taskID); err != nil {
		logger.FromContextOr(ctx, l.logger).Error("failed to purge task artifacts",
			"task_id", taskID,
			"error", err)
	}
}

// isLostRace reports whether a compare-and-set failed because the task moved
// on or disappeared.
func isLostRace(err error) bool {
	return errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrTaskNotFound)
}
