package research

import (
	"context"
	"regexp"
	"strings"

	"github.com/m-mizutani/aria/pkg/adapter"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

const (
	summaryTemperature  float32 = 0.3
	summaryMaxTokens    int32   = 500
	notesTemperature    float32 = 0.2
	notesMaxTokens      int32   = 350
	insightsTemperature float32 = 0.3
	insightsMaxTokens   int32   = 350

	suggestionsTemperature float32 = 0.4
	suggestionsMaxTokens   int32   = 200
	questionsTemperature   float32 = 0.4
	questionsMaxTokens     int32   = 120

	maxSuggestions         = 3
	maxReflectingQuestions = 4
)

type synthesisResult struct {
	summary  string
	notes    string
	insights string
}

// synthesize runs the three core generations concurrently. All three
// must succeed; a single failure fails the whole synthesis.
func (u *UseCase) synthesize(ctx context.Context, topic string, results []*model.SearchResult) (*synthesisResult, error) {
	var out synthesisResult

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		prompt, err := buildSummaryPrompt(topic, results)
		if err != nil {
			return err
		}
		text, err := u.generate(ctx, prompt, summaryTemperature, summaryMaxTokens)
		if err != nil {
			return goerr.Wrap(err, "failed to generate summary")
		}
		out.summary = text
		return nil
	})
	eg.Go(func() error {
		prompt, err := buildNotesPrompt(topic, results)
		if err != nil {
			return err
		}
		text, err := u.generate(ctx, prompt, notesTemperature, notesMaxTokens)
		if err != nil {
			return goerr.Wrap(err, "failed to generate notes")
		}
		out.notes = text
		return nil
	})
	eg.Go(func() error {
		prompt, err := buildInsightsPrompt(topic, results)
		if err != nil {
			return err
		}
		text, err := u.generate(ctx, prompt, insightsTemperature, insightsMaxTokens)
		if err != nil {
			return goerr.Wrap(err, "failed to generate insights")
		}
		out.insights = text
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "research synthesis failed",
			goerr.T(model.TagSynthesisFailed),
			goerr.V("topic", topic),
		)
	}
	return &out, nil
}

// generateExtras produces follow-up suggestions and reflecting
// questions. Both are best effort: a failure is logged and yields an
// empty list instead of failing the research run.
func (u *UseCase) generateExtras(ctx context.Context, topic string) (suggestions, questions []string) {
	logger := logging.From(ctx)

	var eg errgroup.Group
	eg.Go(func() error {
		prompt, err := buildSuggestionsPrompt(topic)
		if err == nil {
			var text string
			if text, err = u.generate(ctx, prompt, suggestionsTemperature, suggestionsMaxTokens); err == nil {
				suggestions = parseSuggestions(text)
			}
		}
		if err != nil {
			logger.Warn("failed to generate research suggestions", "topic", topic, "error", err)
		}
		return nil
	})
	eg.Go(func() error {
		prompt, err := buildQuestionsPrompt(topic)
		if err == nil {
			var text string
			if text, err = u.generate(ctx, prompt, questionsTemperature, questionsMaxTokens); err == nil {
				questions = parseReflectingQuestions(text)
			}
		}
		if err != nil {
			logger.Warn("failed to generate reflecting questions", "topic", topic, "error", err)
		}
		return nil
	})
	_ = eg.Wait()

	return suggestions, questions
}

// generate issues one model call with the research persona as system
// instruction and returns the trimmed text of the first candidate.
func (u *UseCase) generate(ctx context.Context, prompt string, temperature float32, maxTokens int32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.generateTimeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(personaPromptRaw, genai.RoleUser),
		Temperature:       genai.Ptr(temperature),
		MaxOutputTokens:   maxTokens,
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}

	text := adapter.ResponseText(resp)
	if text == "" {
		return "", goerr.New("empty response from model")
	}
	return text, nil
}

var researchQuestionRe = regexp.MustCompile(`(?s)\*\*Research Question \d+:\*\*\s*(.+?)(?:\n\*\*Rationale|$)`)

// parseSuggestions extracts research suggestions from model output. It
// prefers the "**Research Question N:**" layout the prompt asks for and
// falls back to plain lines, dropping anything too short to be a real
// question.
func parseSuggestions(text string) []string {
	var suggestions []string
	for _, m := range researchQuestionRe.FindAllStringSubmatch(text, -1) {
		if s := strings.TrimSpace(m[1]); s != "" {
			suggestions = append(suggestions, s)
		}
	}

	if len(suggestions) == 0 {
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "**") {
				continue
			}
			s := strings.Trim(line, "•-0123456789. *")
			if len(s) > 20 {
				suggestions = append(suggestions, s)
			}
		}
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

var numberedLineRe = regexp.MustCompile(`\d+\.\s*(.+)`)

// parseReflectingQuestions extracts the numbered or bulleted questions
// the prompt asks for, one per line.
func parseReflectingQuestions(text string) []string {
	var questions []string
	for _, m := range numberedLineRe.FindAllStringSubmatch(text, -1) {
		if q := strings.TrimSpace(m[1]); q != "" {
			questions = append(questions, q)
		}
	}

	if len(questions) == 0 {
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if q := strings.Trim(line, "-•* "); q != "" {
				questions = append(questions, q)
			}
		}
	}

	if len(questions) > maxReflectingQuestions {
		questions = questions[:maxReflectingQuestions]
	}
	return questions
}

// ParseSuggestionsForTest is a test helper that exposes parseSuggestions
func ParseSuggestionsForTest(text string) []string {
	return parseSuggestions(text)
}

// ParseReflectingQuestionsForTest is a test helper that exposes parseReflectingQuestions
func ParseReflectingQuestionsForTest(text string) []string {
	return parseReflectingQuestions(text)
}
