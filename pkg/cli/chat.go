package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/usecase/agent"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg      config
		email    string
		noMemory bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Aliases:     []string{"e"},
			Usage:       "User email identifying the stored history",
			Sources:     cli.EnvVars("KIOKU_EMAIL"),
			Destination: &email,
		},
		&cli.BoolFlag{
			Name:        "no-memory",
			Usage:       "Run without conversational memory",
			Destination: &noMemory,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Start an interactive conversation",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			chat, err := cfg.newChat()
			if err != nil {
				return err
			}

			var opts []agent.Option
			if !noMemory {
				if email == "" {
					return goerr.New("email is required unless --no-memory is set")
				}
				svc, err := cfg.newMemory(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, agent.WithMemory(svc, email))
				greet(ctx, c.Root().Writer, svc, email)
			}

			session := agent.New(chat, opts...)

			rl, err := readline.New("You: ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize input")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Type 'exit' or 'quit' to end the conversation.\n\n")

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "" {
					continue
				}
				if message == "exit" || message == "quit" {
					break
				}

				resp, err := exchange(ctx, session, message)
				if err != nil {
					fmt.Fprintf(c.Root().Writer, "[error] %s\n", err)
					continue
				}

				printResponse(c.Root().Writer, resp)
			}

			fmt.Fprintf(c.Root().Writer, "\nConversation finished.\n")
			return nil
		},
	}
}

// greet loads the stored history so the cached name is warm and the user
// sees what the assistant remembers. A store failure here only logs: the
// conversation can start without memory context.
func greet(ctx context.Context, w io.Writer, svc *memory.Service, email string) {
	history, err := svc.FetchUserHistory(ctx, email, 0)
	if err != nil {
		logging.From(ctx).Warn("failed to load stored history", "error", err, "email", email)
		return
	}

	fmt.Fprintf(w, "Logged in as: %s\n", email)
	if name := svc.KnownName(email); name != "" {
		fmt.Fprintf(w, "Name on record: %s\n", name)
	}
	if len(history) > 0 {
		fmt.Fprintf(w, "Stored turns: %d (latest %s)\n", len(history), history[len(history)-1].Timestamp)
	}
}

// exchange runs one chat call with a progress spinner
func exchange(ctx context.Context, session *agent.Agent, message string) (*agent.Response, error) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr), spinner.WithSuffix(" thinking..."))
	sp.Start()
	defer sp.Stop()

	return session.Send(ctx, message)
}

func printResponse(w io.Writer, resp *agent.Response) {
	answer := resp.Answer
	if answer == "" {
		answer = "[empty response]"
	}
	fmt.Fprintf(w, "Agent: %s\n", answer)

	if !resp.ShowSources || len(resp.Citations) == 0 {
		return
	}

	fmt.Fprintf(w, "Sources:\n")
	for idx, citation := range resp.Citations {
		label := citation.Title
		if label == "" {
			label = citation.Source
		}
		switch {
		case label != "" && citation.Snippet != "":
			fmt.Fprintf(w, "  [%d] %s: %s\n", idx+1, label, citation.Snippet)
		case label != "":
			fmt.Fprintf(w, "  [%d] %s\n", idx+1, label)
		default:
			fmt.Fprintf(w, "  [%d] %s\n", idx+1, citation.Snippet)
		}
	}
}
