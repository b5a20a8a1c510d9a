package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/phrazzld/lingo-api/internal/service/auth"
)

// NewTokenCommand returns the token subcommand, which signs an access token
// with the deployment's JWT secret.
func NewTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an access token for a user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "User id placed in the sub claim",
				Required: true,
			},
		},
		Action: runToken,
	}
}

func runToken(ctx context.Context, cmd *cli.Command) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	jwtService, err := auth.NewJWTService(e.cfg.Auth)
	if err != nil {
		return err
	}

	token, err := jwtService.GenerateToken(ctx, cmd.String("user"))
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, token)
	return err
}
