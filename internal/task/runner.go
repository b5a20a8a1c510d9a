package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/lingo-api/internal/artifact"
	"github.com/phrazzld/lingo-api/internal/domain"
	"github.com/phrazzld/lingo-api/internal/store"
	"github.com/phrazzld/lingo-api/internal/translation"
)

// ReasonShutdown is recorded on tasks whose translation was interrupted by Stop.
const ReasonShutdown = "interrupted by shutdown"

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// LeaseDuration defines how long a task can stay in processing state
	// before the sweep fails it
	LeaseDuration time.Duration

	// SweepInterval defines how often expired leases and missing queue
	// entries are checked
	SweepInterval time.Duration

	// PollInterval bounds how long an idle worker waits before trying to
	// claim again without a wake-up signal
	PollInterval time.Duration

	// TranslationTimeout bounds a single translation call. Zero means no
	// timeout beyond the lease.
	TranslationTimeout time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:        2,
		LeaseDuration:      10 * time.Minute,
		SweepInterval:      time.Minute,
		PollInterval:       2 * time.Second,
		TranslationTimeout: 2 * time.Minute,
	}
}

// TaskRunner runs the translation workers and the lease sweep.
type TaskRunner struct {
	lifecycle  *Lifecycle
	queue      *QueueManager
	store      store.TaskStore
	artifacts  artifact.Store
	translator translation.Translator
	config     TaskRunnerConfig
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(
	lifecycle *Lifecycle,
	queue *QueueManager,
	taskStore store.TaskStore,
	artifacts artifact.Store,
	translator translation.Translator,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	defaults := DefaultTaskRunnerConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.LeaseDuration <= 0 {
		config.LeaseDuration = defaults.LeaseDuration
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskRunner{
		lifecycle:  lifecycle,
		queue:      queue,
		store:      taskStore,
		artifacts:  artifacts,
		translator: translator,
		config:     config,
		logger:     logger.With("component", "task_runner"),
	}
}

// Start runs one recovery pass and then starts the workers and the sweep.
// The runner stops when ctx is cancelled or Stop is called.
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return errors.New("task runner already started")
	}

	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, fmt.Sprintf("worker-%d", i))
	}

	r.wg.Add(1)
	go r.sweeper(runCtx)

	r.logger.Info("task runner started",
		"worker_count", r.config.WorkerCount,
		"lease_duration", r.config.LeaseDuration,
		"sweep_interval", r.config.SweepInterval)
	return nil
}

// Stop cancels the workers and the sweep and waits for them to exit.
// In-flight translations are interrupted and recorded as failures.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// Recover brings the queue in line with the store after a restart: stale
// processing tasks are expired and every pending task is enqueued.
func (r *TaskRunner) Recover(ctx context.Context) error {
	expired, requeued, err := r.sweep(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("recovered unfinished tasks",
		"expired_count", expired,
		"requeued_count", requeued)
	return nil
}

// worker claims and processes tasks until ctx ends.
func (r *TaskRunner) worker(ctx context.Context, workerID string) {
	defer r.wg.Done()

	log := r.logger.With("worker_id", workerID)
	log.Debug("starting worker")

	timer := time.NewTimer(r.config.PollInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			log.Debug("stopping worker")
			return
		}

		t, err := r.lifecycle.ClaimNext(ctx, workerID)
		switch {
		case err == nil:
			r.processTask(ctx, t, workerID)
			continue
		case errors.Is(err, ErrQueueEmpty):
		case ctx.Err() != nil:
			continue
		default:
			log.Error("failed to claim task", "error", err)
		}

		timer.Reset(r.config.PollInterval)
		select {
		case <-ctx.Done():
		case <-r.queue.Wake():
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// processTask translates one claimed task and reports the outcome.
func (r *TaskRunner) processTask(ctx context.Context, t *domain.Task, workerID string) {
	log := r.logger.With(
		"task_id", t.ID,
		"worker_id", workerID,
		"attempts", t.Attempts,
	)
	log.Info("processing task")

	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if r.config.TranslationTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, r.config.TranslationTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	r.queue.BindCancel(t.ID, t.Attempts, cancel)

	outcome := r.translate(taskCtx, t)

	// Reports are written even when the runner is stopping.
	reportCtx, reportCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer reportCancel()

	if ctx.Err() != nil && outcome.Err != nil {
		outcome = Failed(errors.New(ReasonShutdown))
	}

	if _, err := r.lifecycle.ReportOutcome(reportCtx, t, outcome); err != nil {
		if errors.Is(err, ErrOutcomeDiscarded) {
			log.Info("task outcome discarded", "reason", err)
			return
		}
		log.Error("failed to report task outcome", "error", err)
	}
}

func (r *TaskRunner) translate(ctx context.Context, t *domain.Task) Outcome {
	content := t.SourceContent
	if content == "" {
		data, err := r.artifacts.Read(ctx, t.SourceFilePath)
		if err != nil {
			return Failed(fmt.Errorf("read source file: %w", err))
		}
		content = string(data)
	}

	result, err := r.translator.Translate(ctx, translation.Request{
		Content:        content,
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
	})
	if err != nil {
		return Failed(err)
	}
	return Succeeded(result)
}

// sweeper runs the sweep every SweepInterval.
func (r *TaskRunner) sweeper(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			expired, requeued, err := r.sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("task sweep failed", "error", err)
				}
				continue
			}
			if expired > 0 || requeued > 0 {
				r.logger.Info("task sweep finished",
					"expired_count", expired,
					"requeued_count", requeued)
			}
		}
	}
}

// sweep fails tasks whose lease expired and enqueues pending tasks missing
// from the queue. Per-task errors are logged and skipped.
func (r *TaskRunner) sweep(ctx context.Context) (expired, requeued int, err error) {
	stale, err := r.store.GetProcessingTasks(ctx, r.config.LeaseDuration)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get processing tasks: %w", err)
	}

	for _, t := range stale {
		if _, err := r.lifecycle.ExpireLease(ctx, t); err != nil {
			if !errors.Is(err, ErrOutcomeDiscarded) {
				r.logger.Error("failed to expire task lease",
					"task_id", t.ID,
					"error", err)
			}
			continue
		}
		expired++
	}

	pending, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return expired, 0, fmt.Errorf("failed to get pending tasks: %w", err)
	}

	for _, t := range pending {
		queued, err := r.queue.Contains(ctx, t.ID)
		if err != nil {
			r.logger.Error("failed to check queue membership",
				"task_id", t.ID,
				"error", err)
			continue
		}
		if queued {
			continue
		}

		// The listing may predate a claim that already popped the id.
		current, err := r.store.GetByID(ctx, t.ID)
		if err != nil || current.Status != domain.TaskStatusPending {
			continue
		}
		if err := r.queue.Enqueue(ctx, t.ID, t.CreatedAt); err != nil {
			r.logger.Error("failed to requeue pending task",
				"task_id", t.ID,
				"error", err)
			continue
		}
		requeued++
	}

	return expired, requeued, nil
}
