package cli

import (
	"context"

	"github.com/m-mizutani/aria/pkg/service/mcp"
	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := storageFlags(&cfg)
	flags = append(flags, gatewayFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve research tools over MCP on stdio",
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
			srv := mcp.New(
				sessions,
				research.New(sessions, search, gemini, cfg.researchOptions()...),
				chat.New(sessions, gemini, cfg.chatOptions()...),
			)

			return srv.Run(ctx)
		},
	}
}
