package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func forgetCommand() *cli.Command {
	var (
		cfg   config
		email string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Aliases:     []string{"e"},
			Usage:       "User email whose stored data is removed",
			Sources:     cli.EnvVars("KIOKU_EMAIL"),
			Destination: &email,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "forget",
		Usage: "Delete all stored data for a user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			svc, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}

			deleted, err := svc.DeleteUserData(ctx, email)
			if err != nil {
				return goerr.Wrap(err, "failed to delete user data")
			}

			if deleted {
				fmt.Fprintf(c.Root().Writer, "Deleted stored data for %s\n", email)
			} else {
				fmt.Fprintf(c.Root().Writer, "No stored data for %s\n", email)
			}
			return nil
		},
	}
}
