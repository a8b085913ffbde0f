package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

// New builds the root command. Exposed so tests can attach their own writer.
func New() *cli.Command {
	return &cli.Command{
		Name:  "aria",
		Usage: "Academic research assistant with persistent sessions",
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			researchCommand(),
			chatCommand(),
			sessionCommand(),
			historyCommand(),
			savedCommand(),
		},
	}
}

func Run(ctx context.Context, argv []string) *Error {
	if err := New().Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
