package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg   config
		email string
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Aliases:     []string{"e"},
			Usage:       "User email identifying the stored history",
			Sources:     cli.EnvVars("KIOKU_EMAIL"),
			Destination: &email,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of segments to scan",
			Value:       100,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List stored conversation entries for a user",
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

			entries, err := svc.FetchUserHistory(ctx, email, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to fetch history")
			}

			if len(entries) == 0 {
				fmt.Fprintf(c.Root().Writer, "No stored history for %s\n", email)
				return nil
			}

			for idx, entry := range entries {
				fmt.Fprintf(c.Root().Writer, "%02d. %s\t%s\t%s\n",
					idx+1, entry.Timestamp, entry.Role, entry.Summary)
			}
			return nil
		},
	}
}
