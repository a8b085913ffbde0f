package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/saved"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func savedCommand() *cli.Command {
	return &cli.Command{
		Name:  "saved",
		Usage: "Manage saved research sections",
		Commands: []*cli.Command{
			savedSaveCommand(),
			savedListCommand(),
			savedDeleteCommand(),
		},
	}
}

func savedSaveCommand() *cli.Command {
	var (
		cfg         config
		sessionID   string
		query       string
		name        string
		content     string
		contentFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session the research belongs to",
			Sources:     cli.EnvVars("ARIA_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Research query the section came from",
			Destination: &query,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "name",
			Aliases:     []string{"n"},
			Usage:       "Section name (summary, notes, insights, ...)",
			Destination: &name,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "content",
			Usage:       "Section content",
			Destination: &content,
		},
		&cli.StringFlag{
			Name:        "content-file",
			Usage:       "Path to a file holding the section content",
			Destination: &contentFile,
		},
	}
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "save",
		Usage: "Save one research section for later reference",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if content == "" && contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return goerr.Wrap(err, "failed to read content file", goerr.V("path", contentFile))
				}
				content = string(data)
			}
			if content == "" {
				return goerr.New("content or content-file is required")
			}

			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			if err := saved.New(repo).SaveSection(ctx, &saved.SaveInput{
				SessionID: model.SessionID(sessionID),
				Query:     query,
				Name:      name,
				Content:   content,
			}); err != nil {
				return goerr.Wrap(err, "failed to save research section")
			}

			fmt.Fprintf(c.Root().Writer, "Saved section %q under query %q\n", name, query)
			return nil
		},
	}
}

func savedListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "list",
		Usage:     "List saved research, optionally for one session",
		ArgsUsage: "[session-id]",
		Flags:     storageFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			uc := saved.New(repo)

			var records []*model.SavedResearch
			if sessionID := c.Args().First(); sessionID != "" {
				records, err = uc.List(ctx, model.SessionID(sessionID))
			} else {
				records, err = uc.ListAll(ctx)
			}
			if err != nil {
				return goerr.Wrap(err, "failed to list saved research")
			}

			if len(records) == 0 {
				fmt.Fprintf(c.Root().Writer, "No saved research found\n")
				return nil
			}

			for _, r := range records {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%d sections\t%s\n",
					r.SessionID,
					r.Query,
					len(r.Sections),
					r.UpdatedAt.Format("2006-01-02 15:04:05"),
				)
			}

			return nil
		},
	}
}

func savedDeleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete the saved research of one query",
		ArgsUsage: "<session-id> <query>",
		Flags:     storageFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			sessionID := c.Args().Get(0)
			query := c.Args().Get(1)
			if sessionID == "" || query == "" {
				return goerr.New("session-id and query are required")
			}

			if err := cfg.configure(); err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			if err := saved.New(repo).Delete(ctx, model.SessionID(sessionID), query); err != nil {
				return goerr.Wrap(err, "failed to delete saved research")
			}

			fmt.Fprintf(c.Root().Writer, "Deleted saved research for %q\n", query)
			return nil
		},
	}
}
