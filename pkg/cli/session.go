package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage research sessions",
		Commands: []*cli.Command{
			sessionListCommand(),
			sessionShowCommand(),
			sessionDeleteCommand(),
		},
	}
}

func sessionListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List all research sessions",
		Flags: storageFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			summaries, err := session.New(repo).List(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list sessions")
			}

			if len(summaries) == 0 {
				fmt.Fprintf(c.Root().Writer, "No sessions found\n")
				return nil
			}

			for _, s := range summaries {
				topic := s.CurrentTopic
				if topic == "" {
					topic = "-"
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%d research\t%d turns\t%s\n",
					s.ID,
					topic,
					s.ResearchCount,
					s.ConversationCount,
					s.UpdatedAt.Format("2006-01-02 15:04:05"),
				)
			}

			return nil
		},
	}
}

func sessionShowCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "show",
		Usage:     "Show the full document of one session",
		ArgsUsage: "<session-id>",
		Flags:     storageFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			sessionID := c.Args().First()
			if sessionID == "" {
				return goerr.New("session-id is required")
			}

			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			sess, err := session.New(repo).Get(ctx, model.SessionID(sessionID))
			if err != nil {
				return goerr.Wrap(err, "failed to get session")
			}

			data, err := json.MarshalIndent(sess, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal session")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
			return nil
		},
	}
}

func sessionDeleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a session with its search history and saved research",
		ArgsUsage: "<session-id>",
		Flags:     storageFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			sessionID := c.Args().First()
			if sessionID == "" {
				return goerr.New("session-id is required")
			}

			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			if err := session.New(repo).Delete(ctx, model.SessionID(sessionID)); err != nil {
				return goerr.Wrap(err, "failed to delete session")
			}

			fmt.Fprintf(c.Root().Writer, "Session %s deleted\n", sessionID)
			return nil
		},
	}
}
