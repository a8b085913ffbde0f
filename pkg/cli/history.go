package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg config
		all bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "all",
			Aliases:     []string{"a"},
			Usage:       "List search history across every session",
			Sources:     cli.EnvVars("ARIA_HISTORY_ALL"),
			Destination: &all,
		},
	}
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "history",
		Usage:     "List the search history of a session",
		ArgsUsage: "<session-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			sessionID := c.Args().First()
			if sessionID == "" && !all {
				return goerr.New("session-id is required unless --all is set")
			}

			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			uc := session.New(repo)

			var entries []*model.SearchHistoryEntry
			if all {
				entries, err = uc.AllSearchHistory(ctx)
			} else {
				entries, err = uc.SearchHistory(ctx, model.SessionID(sessionID))
			}
			if err != nil {
				return goerr.Wrap(err, "failed to list search history")
			}

			if len(entries) == 0 {
				fmt.Fprintf(c.Root().Writer, "No search history found\n")
				return nil
			}

			for _, e := range entries {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\t%d results\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.SessionID,
					e.Query,
					e.NumResults,
				)
			}

			return nil
		},
	}
}
