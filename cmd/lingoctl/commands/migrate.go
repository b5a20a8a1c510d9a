package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/phrazzld/lingo-api/internal/platform/postgres"
)

// NewMigrateCommand returns the migrate subcommand.
func NewMigrateCommand() *cli.Command {
	sub := func(name, usage string) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runMigrate(ctx, cmd, name)
			},
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the task database schema",
		Commands: []*cli.Command{
			sub("up", "Apply all pending migrations"),
			sub("down", "Roll back the latest migration"),
			sub("status", "Show migration status"),
			sub("version", "Print the current schema version"),
		},
		DefaultCommand: "status",
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command, command string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := postgres.Migrate(ctx, db, command, e.logger); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
