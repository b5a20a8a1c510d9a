package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/lingo-api/internal/artifact"
	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/platform/gemini"
	"github.com/phrazzld/lingo-api/internal/platform/memory"
	"github.com/phrazzld/lingo-api/internal/platform/ollama"
	"github.com/phrazzld/lingo-api/internal/platform/postgres"
	"github.com/phrazzld/lingo-api/internal/platform/redis"
	"github.com/phrazzld/lingo-api/internal/service"
	"github.com/phrazzld/lingo-api/internal/service/auth"
	"github.com/phrazzld/lingo-api/internal/store"
	"github.com/phrazzld/lingo-api/internal/task"
	"github.com/phrazzld/lingo-api/internal/translation"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// closers are released in reverse order by cleanup
	closers []io.Closer

	taskStore  store.TaskStore
	artifacts  *artifact.FileStore
	queue      *task.QueueManager
	lifecycle  *task.Lifecycle
	translator translation.Translator
	taskRunner *task.TaskRunner

	jwtService  auth.JWTService
	taskService service.TaskService
}

// newApplication creates a new application instance with all dependencies
// initialized. On error every resource opened so far is released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	return buildApplication(ctx, cfg, logger, nil)
}

// buildApplication wires the application around translator, or around the
// configured provider when translator is nil.
func buildApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	translator translation.Translator,
) (app *application, err error) {
	app = &application{
		config:     cfg,
		logger:     logger,
		translator: translator,
	}
	defer func() {
		if err != nil {
			app.cleanup()
			app = nil
		}
	}()

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.taskStore, err = app.setupTaskStore(ctx)
	if err != nil {
		return nil, err
	}

	app.artifacts, err = artifact.NewFileStore(cfg.Storage.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	logger.Info("Artifact store ready", "root", app.artifacts.Root())

	set, err := app.setupPendingSet(ctx)
	if err != nil {
		return nil, err
	}
	app.queue = task.NewQueueManager(set, app.taskStore, logger)
	app.lifecycle = task.NewLifecycle(
		app.taskStore,
		app.artifacts,
		app.queue,
		task.RetryPolicy{MaxAttempts: cfg.Queue.MaxAttempts},
		logger,
	)

	if app.translator == nil {
		app.translator, err = app.setupTranslator(ctx)
		if err != nil {
			return nil, err
		}
	}

	app.taskRunner = task.NewTaskRunner(
		app.lifecycle,
		app.queue,
		app.taskStore,
		app.artifacts,
		app.translator,
		task.TaskRunnerConfig{
			WorkerCount:        cfg.Queue.WorkerCount,
			LeaseDuration:      cfg.Queue.LeaseDuration,
			SweepInterval:      cfg.Queue.SweepInterval,
			PollInterval:       cfg.Queue.PollInterval,
			TranslationTimeout: cfg.Translation.Timeout,
		},
		logger,
	)

	app.taskService, err = service.NewTaskService(app.taskStore, app.lifecycle, app.artifacts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupTaskStore opens the configured task record backend. PostgreSQL is
// migrated to the latest version before use.
func (app *application) setupTaskStore(ctx context.Context) (store.TaskStore, error) {
	switch app.config.Database.Driver {
	case "memory":
		app.logger.Warn("Using in-memory task store; tasks are lost on restart")
		return memory.NewTaskStore(), nil
	case "postgres":
		db, err := postgres.Open(ctx, app.config.Database.URL, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.closers = append(app.closers, db)

		if err := postgres.Migrate(ctx, db, "up", app.logger); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return postgres.NewPostgresTaskStore(db, app.logger), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", app.config.Database.Driver)
	}
}

// setupPendingSet returns the pending task ordering for the configured
// queue backend.
func (app *application) setupPendingSet(ctx context.Context) (task.PendingSet, error) {
	switch app.config.Queue.Backend {
	case "memory":
		return task.NewMemoryPendingSet(), nil
	case "redis":
		client, err := redis.Connect(ctx, app.config.Queue.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.closers = append(app.closers, client)
		app.logger.Info("Redis pending set ready", "key", app.config.Queue.RedisKey)
		return redis.NewPendingSet(client, app.config.Queue.RedisKey), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", app.config.Queue.Backend)
	}
}

func (app *application) setupTranslator(ctx context.Context) (translation.Translator, error) {
	log := app.logger.With("component", "translator")

	switch app.config.Translation.Provider {
	case "gemini":
		t, err := gemini.NewTranslator(ctx, log, app.config.Translation)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini translator: %w", err)
		}
		return t, nil
	case "ollama":
		t, err := ollama.NewTranslator(log, app.config.Translation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama translator: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", app.config.Translation.Provider)
	}
}

// Run starts the task runner and the HTTP server and blocks until ctx is
// cancelled or the server fails. Resources are released before returning.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.taskRunner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error("Error closing resource", "error", err)
		}
	}
	app.closers = nil

	app.logger.Info("Application shutdown completed")
}
