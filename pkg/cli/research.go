package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func researchCommand() *cli.Command {
	var (
		cfg        config
		sessionID  string
		numResults int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session to research into (a new session is created when omitted)",
			Sources:     cli.EnvVars("ARIA_SESSION_ID"),
			Destination: &sessionID,
		},
		&cli.IntFlag{
			Name:        "num-results",
			Aliases:     []string{"n"},
			Usage:       "Number of articles to fetch (1-10)",
			Value:       int64(research.DefaultNumResults),
			Sources:     cli.EnvVars("ARIA_NUM_RESULTS"),
			Destination: &numResults,
		},
	}
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, gatewayFlags(&cfg)...)

	return &cli.Command{
		Name:      "research",
		Usage:     "Research a topic and synthesize the findings into a session",
		ArgsUsage: "<topic>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			topic := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if topic == "" {
				return goerr.New("topic is required")
			}

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

			uc := research.New(session.New(repo), search, gemini, cfg.researchOptions()...)

			// Progress indicator goes to stderr so stdout stays pipeable
			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			sp.Suffix = fmt.Sprintf(" researching: %s", topic)
			sp.Start()

			out, err := uc.Research(ctx, &research.Input{
				SessionID:  model.SessionID(sessionID),
				Topic:      topic,
				NumResults: int(numResults),
			})
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "research failed")
			}

			printResearch(c.Root().Writer, out)
			return nil
		},
	}
}

func printResearch(w io.Writer, out *research.Output) {
	fmt.Fprintf(w, "Session: %s\n", out.SessionID)
	fmt.Fprintf(w, "Status:  %s\n", out.Status)

	switch out.Status {
	case model.ResearchNoResults:
		fmt.Fprintf(w, "\nNo articles found for %q\n", out.Topic)
		return
	case model.ResearchPartial:
		fmt.Fprintf(w, "\nSynthesis unavailable, showing raw search results\n")
	}

	if out.Summary != "" {
		fmt.Fprintf(w, "\n## Summary\n%s\n", out.Summary)
	}
	if out.Notes != "" {
		fmt.Fprintf(w, "\n## Research Notes\n%s\n", out.Notes)
	}
	if out.Insights != "" {
		fmt.Fprintf(w, "\n## Key Insights\n%s\n", out.Insights)
	}

	if len(out.Suggestions) > 0 {
		fmt.Fprintf(w, "\n## Suggested Research Questions\n")
		for i, q := range out.Suggestions {
			fmt.Fprintf(w, "%d. %s\n", i+1, q)
		}
	}
	if len(out.ReflectingQuestions) > 0 {
		fmt.Fprintf(w, "\n## Reflecting Questions\n")
		for i, q := range out.ReflectingQuestions {
			fmt.Fprintf(w, "%d. %s\n", i+1, q)
		}
	}

	if len(out.Results) > 0 {
		fmt.Fprintf(w, "\n## Sources\n")
		for _, r := range out.Results {
			fmt.Fprintf(w, "- %s (%s)\n", r.Title, r.Link)
		}
	}
}
