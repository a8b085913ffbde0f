package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session providing the conversation context (a new session is created when omitted)",
			Sources:     cli.EnvVars("ARIA_SESSION_ID"),
			Destination: &sessionID,
		},
	}
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, gatewayFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation grounded in a research session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			uc := chat.New(session.New(repo), gemini, cfg.chatOptions()...)

			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "you> ",
				HistoryFile: filepath.Join(os.TempDir(), ".aria_chat_history"),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			sid := model.SessionID(sessionID)
			if sid == "" {
				fmt.Fprintf(c.Root().Writer, "Starting a new chat session. Type 'exit' to quit.\n")
			} else {
				fmt.Fprintf(c.Root().Writer, "Resuming session %s. Type 'exit' to quit.\n", sid)
			}

			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt {
					if len(line) == 0 {
						break
					}
					continue
				} else if err == io.EOF {
					break
				}

				message := strings.TrimSpace(line)
				if message == "" {
					continue
				}
				if message == "exit" {
					break
				}

				out, err := uc.Chat(ctx, &chat.Input{
					SessionID: sid,
					Message:   message,
				})
				if err != nil {
					return goerr.Wrap(err, "failed to send message")
				}
				sid = out.SessionID

				fmt.Fprintf(c.Root().Writer, "aria> %s\n\n", out.Response)
			}

			if sid != "" {
				fmt.Fprintf(c.Root().Writer, "\nChat session completed: %s\n", sid)
			} else {
				fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			}
			return nil
		},
	}
}
