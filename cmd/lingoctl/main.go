// Command lingoctl is the operator CLI for the Lingo API: database
// migrations, task inspection and cleanup, and token issuing.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/phrazzld/lingo-api/cmd/lingoctl/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := commands.NewRootCommand()
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
