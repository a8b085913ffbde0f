package research

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/persona.md
var personaPromptRaw string

//go:embed prompt/summary.md
var summaryPromptRaw string

//go:embed prompt/notes.md
var notesPromptRaw string

//go:embed prompt/insights.md
var insightsPromptRaw string

//go:embed prompt/suggestions.md
var suggestionsPromptRaw string

//go:embed prompt/questions.md
var questionsPromptRaw string

//go:embed prompt/compare.md
var comparePromptRaw string

//go:embed prompt/report.md
var reportPromptRaw string

var (
	summaryPromptTmpl     = template.Must(template.New("summary").Parse(summaryPromptRaw))
	notesPromptTmpl       = template.Must(template.New("notes").Parse(notesPromptRaw))
	insightsPromptTmpl    = template.Must(template.New("insights").Parse(insightsPromptRaw))
	suggestionsPromptTmpl = template.Must(template.New("suggestions").Parse(suggestionsPromptRaw))
	questionsPromptTmpl   = template.Must(template.New("questions").Parse(questionsPromptRaw))
	comparePromptTmpl     = template.Must(template.New("compare").Parse(comparePromptRaw))
	reportPromptTmpl      = template.Must(template.New("report").Parse(reportPromptRaw))
)

func buildSummaryPrompt(topic string, results []*model.SearchResult) (string, error) {
	return executePrompt(summaryPromptTmpl, map[string]any{
		"Topic":    topic,
		"Snippets": joinSnippets(results, " "),
	})
}

func buildNotesPrompt(topic string, results []*model.SearchResult) (string, error) {
	return executePrompt(notesPromptTmpl, map[string]any{
		"Topic":    topic,
		"Snippets": joinSnippets(results, " "),
	})
}

func buildInsightsPrompt(topic string, results []*model.SearchResult) (string, error) {
	return executePrompt(insightsPromptTmpl, map[string]any{
		"Topic":    topic,
		"Articles": joinSnippets(results, "\n\n"),
	})
}

func buildSuggestionsPrompt(topic string) (string, error) {
	return executePrompt(suggestionsPromptTmpl, map[string]any{
		"Topic": topic,
	})
}

func buildQuestionsPrompt(topic string) (string, error) {
	return executePrompt(questionsPromptTmpl, map[string]any{
		"Topic": topic,
	})
}

func buildComparePrompt(query string, articles []*model.SearchResult) (string, error) {
	return executePrompt(comparePromptTmpl, map[string]any{
		"Query":    query,
		"Topic":    query,
		"Articles": formatArticles(articles),
	})
}

func buildReportPrompt(topic, relevantData string) (string, error) {
	return executePrompt(reportPromptTmpl, map[string]any{
		"Topic": topic,
		"Data":  relevantData,
	})
}

func executePrompt(tmpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute prompt template", goerr.V("template", tmpl.Name()))
	}
	return buf.String(), nil
}

// joinSnippets concatenates non-empty snippets with sep, preserving the
// order the search gateway returned them in.
func joinSnippets(results []*model.SearchResult, sep string) string {
	var parts []string
	for _, r := range results {
		if r.Snippet != "" {
			parts = append(parts, r.Snippet)
		}
	}
	return strings.Join(parts, sep)
}

func formatArticles(articles []*model.SearchResult) string {
	parts := make([]string, 0, len(articles))
	for _, a := range articles {
		parts = append(parts, fmt.Sprintf("Title: %s\nSnippet: %s", a.Title, a.Snippet))
	}
	return strings.Join(parts, "\n\n")
}
