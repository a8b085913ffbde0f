package research_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/repository"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type searchCall struct {
	query string
	num   int
}

type searchMock struct {
	mu      sync.Mutex
	results []*model.SearchResult
	err     error
	calls   []searchCall
}

func (m *searchMock) Search(ctx context.Context, query string, numResults int) ([]*model.SearchResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, searchCall{query: query, num: numResults})
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// geminiMock answers by the TASK header of the incoming prompt so that
// the concurrent synthesis calls each get a stable, distinguishable
// response.
type geminiMock struct {
	mu      sync.Mutex
	prompts []string
	fail    map[string]bool
}

func (m *geminiMock) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	prompt := contents[0].Parts[0].Text
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fail := m.fail != nil && m.fail[taskOf(prompt)]
	m.mu.Unlock()

	if fail {
		return nil, errors.New("model unavailable")
	}

	switch taskOf(prompt) {
	case "summary":
		return textResponse("Synthesized summary of the findings."), nil
	case "notes":
		return textResponse("Structured notes on the findings."), nil
	case "insights":
		return textResponse("Key insights extracted from the findings."), nil
	case "suggestions":
		return textResponse(strings.Join([]string{
			"1. How do regional policies shape adoption of the technology?",
			"2. What long-term effects does the technology have on ecosystems?",
			"3. Which measurement methods best capture those effects at scale?",
		}, "\n")), nil
	case "questions":
		return textResponse(strings.Join([]string{
			"1. What assumptions underlie the dominant research methods?",
			"2. Whose interests are served by current funding patterns?",
			"3. How would the conclusions change over a longer time horizon?",
		}, "\n")), nil
	case "compare":
		return textResponse("SECTION 1: EXECUTIVE SUMMARY\nCross-article relevance analysis."), nil
	case "report":
		return textResponse("# Report Title\n\n\n\nAbstract\nFull report body."), nil
	}
	return nil, errors.New("unexpected prompt: " + firstLine(prompt))
}

func taskOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "TASK: Academic Summary Synthesis"):
		return "summary"
	case strings.Contains(prompt, "TASK: Structured Academic Note Generation"):
		return "notes"
	case strings.Contains(prompt, "TASK: Academic Insight Extraction and Analysis"):
		return "insights"
	case strings.Contains(prompt, "TASK: Academic Research Question Development"):
		return "suggestions"
	case strings.Contains(prompt, "TASK: Reflecting Question Generation"):
		return "questions"
	case strings.Contains(prompt, "Article Comparison and Relevance Extraction"):
		return "compare"
	case strings.Contains(prompt, "TASK: Comprehensive Academic Report Generation"):
		return "report"
	}
	return ""
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

type fixture struct {
	repo     *repository.Memory
	sessions *session.UseCase
	search   *searchMock
	gemini   *geminiMock
	uc       *research.UseCase
}

func newFixture(results []*model.SearchResult) *fixture {
	repo := repository.NewMemory()
	sessions := session.New(repo)
	search := &searchMock{results: results}
	gemini := &geminiMock{}
	return &fixture{
		repo:     repo,
		sessions: sessions,
		search:   search,
		gemini:   gemini,
		uc:       research.New(sessions, search, gemini),
	}
}

func testResults(n int) []*model.SearchResult {
	results := make([]*model.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, &model.SearchResult{
			Title:     fmt.Sprintf("Article %d", i),
			Link:      fmt.Sprintf("https://example.com/articles/%d", i),
			Author:    "Example Journal",
			Published: "2024-05-01",
			Snippet:   fmt.Sprintf("Snippet %d about the topic.", i),
		})
	}
	return results
}

func TestResearch(t *testing.T) {
	f := newFixture(testResults(2))
	ctx := context.Background()

	out, err := f.uc.Research(ctx, &research.Input{Topic: "solid state batteries"})
	gt.NoError(t, err)
	gt.Equal(t, out.Status, model.ResearchFull)
	gt.Equal(t, out.Topic, "solid state batteries")
	gt.A(t, out.Results).Length(2)
	gt.Equal(t, out.Summary, "Synthesized summary of the findings.")
	gt.Equal(t, out.Notes, "Structured notes on the findings.")
	gt.Equal(t, out.Insights, "Key insights extracted from the findings.")
	gt.A(t, out.Suggestions).Length(3)
	gt.A(t, out.ReflectingQuestions).Length(3)
	gt.False(t, out.Timestamp.IsZero())

	gt.V(t, out.Session).NotNil()
	gt.Equal(t, out.Session.CurrentTopic, "solid state batteries")
	gt.A(t, out.Session.ResearchHistory).Length(1)
	gt.A(t, out.Session.Sources).Length(2)

	stored, err := f.repo.GetSession(ctx, out.SessionID)
	gt.NoError(t, err)
	gt.A(t, stored.ResearchHistory).Length(1)
	gt.Equal(t, stored.ResearchHistory[0].Topic, "solid state batteries")
	gt.Equal(t, stored.ResearchHistory[0].Summary, out.Summary)
	gt.Equal(t, stored.ResearchHistory[0].Timestamp.UnixNano(), out.Timestamp.UnixNano())

	history, err := f.repo.ListSearchHistory(ctx, out.SessionID)
	gt.NoError(t, err)
	gt.A(t, history).Length(1)
	gt.Equal(t, history[0].Query, "solid state batteries")
	gt.Equal(t, history[0].NumResults, research.DefaultNumResults)

	gt.A(t, f.search.calls).Length(1)
	gt.Equal(t, f.search.calls[0].num, research.DefaultNumResults)
}

func TestResearchIntoExistingSession(t *testing.T) {
	f := newFixture(testResults(1))
	ctx := context.Background()

	sess, err := f.sessions.Create(ctx)
	gt.NoError(t, err)

	_, err = f.uc.Research(ctx, &research.Input{SessionID: sess.ID, Topic: "ocean acidification"})
	gt.NoError(t, err)

	out, err := f.uc.Research(ctx, &research.Input{SessionID: sess.ID, Topic: "coral bleaching"})
	gt.NoError(t, err)
	gt.Equal(t, out.Session.ID, sess.ID)
	gt.A(t, out.Session.ResearchHistory).Length(2)
	gt.Equal(t, out.Session.CurrentTopic, "coral bleaching")
	gt.A(t, out.Session.Sources).Length(2)
}

func TestResearchMaterializesUnknownSession(t *testing.T) {
	f := newFixture(testResults(1))
	ctx := context.Background()

	id := model.NewSessionID()
	out, err := f.uc.Research(ctx, &research.Input{SessionID: id, Topic: "perovskite solar cells"})
	gt.NoError(t, err)
	gt.Equal(t, out.SessionID, id)

	stored, err := f.repo.GetSession(ctx, id)
	gt.NoError(t, err)
	gt.A(t, stored.ResearchHistory).Length(1)
}

func TestResearchValidation(t *testing.T) {
	f := newFixture(testResults(1))
	ctx := context.Background()

	for _, topic := range []string{"", "   "} {
		_, err := f.uc.Research(ctx, &research.Input{Topic: topic})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagValidation))
	}
	gt.A(t, f.search.calls).Length(0)
}

func TestResearchNumResultsClamp(t *testing.T) {
	cases := []struct {
		name string
		in   int
		want int
	}{
		{"default", 0, research.DefaultNumResults},
		{"negative", -3, 1},
		{"above max", 99, research.MaxNumResults},
		{"in range", 5, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(testResults(1))
			ctx := context.Background()

			out, err := f.uc.Research(ctx, &research.Input{Topic: "topic", NumResults: tc.in})
			gt.NoError(t, err)
			gt.Equal(t, f.search.calls[0].num, tc.want)

			history, err := f.repo.ListSearchHistory(ctx, out.SessionID)
			gt.NoError(t, err)
			gt.A(t, history).Length(1)
			gt.Equal(t, history[0].NumResults, tc.want)
		})
	}
}

func TestResearchNoResults(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	out, err := f.uc.Research(ctx, &research.Input{Topic: "no such topic"})
	gt.NoError(t, err)
	gt.Equal(t, out.Status, model.ResearchNoResults)
	gt.A(t, out.Results).Length(0)
	gt.Equal(t, out.Summary, "")
	gt.A(t, f.gemini.prompts).Length(0)

	stored, err := f.repo.GetSession(ctx, out.SessionID)
	gt.NoError(t, err)
	gt.A(t, stored.ResearchHistory).Length(0)

	history, err := f.repo.ListSearchHistory(ctx, out.SessionID)
	gt.NoError(t, err)
	gt.A(t, history).Length(1)
}

func TestResearchSynthesisFailure(t *testing.T) {
	f := newFixture(testResults(2))
	f.gemini.fail = map[string]bool{"notes": true}
	ctx := context.Background()

	out, err := f.uc.Research(ctx, &research.Input{Topic: "fusion energy"})
	gt.NoError(t, err)
	gt.Equal(t, out.Status, model.ResearchPartial)
	gt.A(t, out.Results).Length(2)
	gt.Equal(t, out.Summary, "")
	gt.Equal(t, out.Notes, "")
	gt.A(t, out.Suggestions).Length(0)

	stored, err := f.repo.GetSession(ctx, out.SessionID)
	gt.NoError(t, err)
	gt.A(t, stored.ResearchHistory).Length(0)
	gt.Equal(t, stored.CurrentTopic, "")

	history, err := f.repo.ListSearchHistory(ctx, out.SessionID)
	gt.NoError(t, err)
	gt.A(t, history).Length(1)
}

func TestResearchSearchFailure(t *testing.T) {
	f := newFixture(nil)
	f.search.err = errors.New("connection refused")
	ctx := context.Background()

	_, err := f.uc.Research(ctx, &research.Input{Topic: "anything"})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagSearchFailed))

	all, err := f.repo.ListAllSearchHistory(ctx)
	gt.NoError(t, err)
	gt.A(t, all).Length(0)
}

func TestFullResearch(t *testing.T) {
	f := newFixture(testResults(3))
	ctx := context.Background()

	out, err := f.uc.FullResearch(ctx, &research.PipelineInput{Query: "carbon capture"})
	gt.NoError(t, err)
	gt.A(t, out.Articles).Length(3)
	gt.S(t, out.RelevantSummary).Contains("EXECUTIVE SUMMARY")
	gt.S(t, out.Report).Contains("Report Title")
	gt.S(t, out.Report).NotContains("#")
	gt.S(t, out.Report).NotContains("\n\n\n")
	gt.Equal(t, f.search.calls[0].num, research.DefaultPipelineResults)

	sessions, err := f.repo.ListSessions(ctx)
	gt.NoError(t, err)
	gt.A(t, sessions).Length(0)

	all, err := f.repo.ListAllSearchHistory(ctx)
	gt.NoError(t, err)
	gt.A(t, all).Length(0)
}

func TestFullResearchValidation(t *testing.T) {
	f := newFixture(testResults(1))
	ctx := context.Background()

	_, err := f.uc.FullResearch(ctx, &research.PipelineInput{Query: "  "})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagValidation))
}

func TestFullResearchNoArticles(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	_, err := f.uc.FullResearch(ctx, &research.PipelineInput{Query: "carbon capture"})
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagNotFound))
}

func TestFullResearchClamp(t *testing.T) {
	f := newFixture(testResults(1))
	ctx := context.Background()

	_, err := f.uc.FullResearch(ctx, &research.PipelineInput{Query: "q", NumResults: 50})
	gt.NoError(t, err)
	gt.Equal(t, f.search.calls[0].num, research.MaxPipelineResults)

	_, err = f.uc.FullResearch(ctx, &research.PipelineInput{Query: "q", NumResults: 5})
	gt.NoError(t, err)
	gt.Equal(t, f.search.calls[1].num, 5)
}
