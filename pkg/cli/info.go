package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func infoCommand() *cli.Command {
	var (
		cfg   config
		email string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Aliases:     []string{"e"},
			Usage:       "User email to inspect",
			Sources:     cli.EnvVars("KIOKU_EMAIL"),
			Destination: &email,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "info",
		Usage: "Show a summary of stored data for a user",
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

			info, err := svc.StoredInfo(ctx, email)
			if err != nil {
				return goerr.Wrap(err, "failed to get stored info")
			}

			if !info.HasData {
				fmt.Fprintf(c.Root().Writer, "No stored data for %s\n", email)
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Email:             %s\n", email)
			fmt.Fprintf(c.Root().Writer, "Name:              %s\n", info.Name)
			fmt.Fprintf(c.Root().Writer, "Messages:          %d\n", info.MessageCount)
			fmt.Fprintf(c.Root().Writer, "First interaction: %s\n", info.FirstInteraction)
			fmt.Fprintf(c.Root().Writer, "Last interaction:  %s\n", info.LastInteraction)
			if len(info.SampleTopics) > 0 {
				fmt.Fprintf(c.Root().Writer, "Recent topics:     %s\n", strings.Join(info.SampleTopics, " / "))
			}
			return nil
		},
	}
}
