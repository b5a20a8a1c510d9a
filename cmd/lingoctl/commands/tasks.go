package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// NewTasksCommand returns the tasks subcommand.
func NewTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect and remove translation tasks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a user's tasks, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Owner user id",
						Required: true,
					},
				},
				Action: runTasksList,
			},
			{
				Name:      "delete",
				Usage:     "Delete a task with its queue entry and artifacts",
				ArgsUsage: "<task_id>",
				Action:    runTasksDelete,
			},
		},
	}
}

func runTasksList(ctx context.Context, cmd *cli.Command) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	taskStore, release, err := e.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	list, err := taskStore.ListByUser(ctx, cmd.String("user"))
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	out := cmd.Root().Writer
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "No tasks found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tLANGUAGES\tATTEMPTS\tCREATED")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s->%s\t%d\t%s\n",
			t.ID,
			t.Status,
			t.SourceLanguage,
			t.TargetLanguage,
			t.Attempts,
			t.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func runTasksDelete(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.Args().First()
	if raw == "" {
		return fmt.Errorf("usage: lingoctl tasks delete <task_id>")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid task id %q: %w", raw, err)
	}

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	lifecycle, _, release, err := e.openLifecycle(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := lifecycle.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "Task %s deleted.\n", id)
	return err
}
