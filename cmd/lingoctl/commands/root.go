// Package commands implements the lingoctl subcommands.
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/phrazzld/lingo-api/internal/artifact"
	"github.com/phrazzld/lingo-api/internal/config"
	"github.com/phrazzld/lingo-api/internal/platform/logger"
	"github.com/phrazzld/lingo-api/internal/platform/memory"
	"github.com/phrazzld/lingo-api/internal/platform/postgres"
	"github.com/phrazzld/lingo-api/internal/platform/redis"
	"github.com/phrazzld/lingo-api/internal/store"
	"github.com/phrazzld/lingo-api/internal/task"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "lingoctl",
		Usage: "Operate a Lingo API deployment",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewMigrateCommand(),
			NewTasksCommand(),
			NewTokenCommand(),
		},
	}
}

// env is what a subcommand needs from the deployment configuration.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadEnv(cmd *cli.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Bool("debug") {
		cfg.Server.LogLevel = "debug"
	}
	// Logs go to stderr so command output stays parseable.
	l := logger.SetupWithWriter(cfg.Server, os.Stderr)
	return &env{cfg: cfg, logger: l}, nil
}

// openDB connects to the configured PostgreSQL database.
func (e *env) openDB(ctx context.Context) (*sql.DB, error) {
	if e.cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("command requires the postgres database driver, got %q", e.cfg.Database.Driver)
	}
	return postgres.Open(ctx, e.cfg.Database.URL, e.logger)
}

// openTaskStore returns the configured task store and a release func.
func (e *env) openTaskStore(ctx context.Context) (store.TaskStore, func(), error) {
	if e.cfg.Database.Driver == "memory" {
		return memory.NewTaskStore(), func() {}, nil
	}

	db, err := e.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := db.Close(); err != nil {
			e.logger.Error("failed to close database", "error", err)
		}
	}
	return postgres.NewPostgresTaskStore(db, e.logger), release, nil
}

// openLifecycle builds a task lifecycle over the deployment's store, artifact
// directory and pending set, so deletes clean up everything the server would.
func (e *env) openLifecycle(ctx context.Context) (*task.Lifecycle, store.TaskStore, func(), error) {
	taskStore, releaseStore, err := e.openTaskStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	artifacts, err := artifact.NewFileStore(e.cfg.Storage.ArtifactDir)
	if err != nil {
		releaseStore()
		return nil, nil, nil, fmt.Errorf("open artifact store: %w", err)
	}

	var set task.PendingSet = task.NewMemoryPendingSet()
	release := releaseStore
	if e.cfg.Queue.Backend == "redis" {
		client, err := redis.Connect(ctx, e.cfg.Queue.RedisAddr)
		if err != nil {
			releaseStore()
			return nil, nil, nil, err
		}
		set = redis.NewPendingSet(client, e.cfg.Queue.RedisKey)
		release = func() {
			_ = client.Close()
			releaseStore()
		}
	}

	queue := task.NewQueueManager(set, taskStore, e.logger)
	lifecycle := task.NewLifecycle(
		taskStore,
		artifacts,
		queue,
		task.RetryPolicy{MaxAttempts: e.cfg.Queue.MaxAttempts},
		e.logger,
	)
	return lifecycle, taskStore, release, nil
}
