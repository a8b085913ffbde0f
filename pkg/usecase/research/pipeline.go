package research

import (
	"context"
	"regexp"
	"strings"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultPipelineResults is the article count the full-research
	// pipeline fetches when the request does not specify one.
	DefaultPipelineResults = 20
	// MaxPipelineResults caps the pipeline article count.
	MaxPipelineResults = 20

	compareTemperature float32 = 0.3
	compareMaxTokens   int32   = 600
	reportTemperature  float32 = 0.3
	reportMaxTokens    int32   = 900
)

// PipelineInput is a full-research request. NumResults of 0 means
// DefaultPipelineResults.
type PipelineInput struct {
	Query      string
	NumResults int
}

// PipelineOutput is the product of the three pipeline stages: the
// fetched articles, the cross-article relevance summary, and the final
// structured report.
type PipelineOutput struct {
	Articles        []*model.SearchResult
	RelevantSummary string
	Report          string
}

// FullResearch runs the stateless fetch, compare, and report pipeline.
// Nothing is recorded on any session; the caller gets the whole product
// back in one shot.
func (u *UseCase) FullResearch(ctx context.Context, input *PipelineInput) (*PipelineOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, goerr.New("research query is required", goerr.T(model.TagValidation))
	}
	numResults := clampPipelineResults(input.NumResults)

	sctx, cancel := context.WithTimeout(ctx, u.searchTimeout)
	articles, err := u.search.Search(sctx, query, numResults)
	cancel()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch articles",
			goerr.T(model.TagSearchFailed),
			goerr.V("query", query),
		)
	}
	if len(articles) == 0 {
		return nil, goerr.New("no articles found for query",
			goerr.T(model.TagNotFound),
			goerr.V("query", query),
		)
	}

	comparePrompt, err := buildComparePrompt(query, articles)
	if err != nil {
		return nil, err
	}
	relevantSummary, err := u.generate(ctx, comparePrompt, compareTemperature, compareMaxTokens)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compare articles",
			goerr.T(model.TagSynthesisFailed),
			goerr.V("query", query),
		)
	}

	reportPrompt, err := buildReportPrompt(query, relevantSummary)
	if err != nil {
		return nil, err
	}
	report, err := u.generate(ctx, reportPrompt, reportTemperature, reportMaxTokens)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate report",
			goerr.T(model.TagSynthesisFailed),
			goerr.V("query", query),
		)
	}

	return &PipelineOutput{
		Articles:        articles,
		RelevantSummary: relevantSummary,
		Report:          cleanReport(report),
	}, nil
}

func clampPipelineResults(n int) int {
	switch {
	case n == 0:
		return DefaultPipelineResults
	case n < 1:
		return 1
	case n > MaxPipelineResults:
		return MaxPipelineResults
	default:
		return n
	}
}

var (
	headingMarkRe = regexp.MustCompile(`^\s*#+\s*`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
)

// cleanReport strips markdown heading marks the model sometimes emits
// despite the plain-text instruction, and collapses blank-line runs.
func cleanReport(report string) string {
	lines := strings.Split(report, "\n")
	for i, line := range lines {
		lines[i] = headingMarkRe.ReplaceAllString(line, "")
	}
	cleaned := blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(cleaned)
}

// CleanReportForTest is a test helper that exposes cleanReport
func CleanReportForTest(report string) string {
	return cleanReport(report)
}
