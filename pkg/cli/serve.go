package cli

import (
	"context"

	"github.com/m-mizutani/aria/pkg/server"
	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/usecase/saved"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Address to listen on",
			Value:       ":8000",
			Sources:     cli.EnvVars("ARIA_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, gatewayFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
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

			search, err := cfg.newSearch()
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			sessions := session.New(repo)
			srv := server.New(
				repo,
				sessions,
				research.New(sessions, search, gemini, cfg.researchOptions()...),
				chat.New(sessions, gemini, cfg.chatOptions()...),
				saved.New(repo),
			)

			return srv.Start(ctx, addr)
		},
	}
}
