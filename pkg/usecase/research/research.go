package research

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/aria/pkg/adapter"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultNumResults is used when a research request does not specify
	// how many search results to fetch.
	DefaultNumResults = 2
	// MaxNumResults caps the per-request result count.
	MaxNumResults = 10
)

// UseCase provides research operations: search, synthesis, and the
// stateless full-research pipeline.
type UseCase struct {
	sessions *session.UseCase
	search   adapter.SearchClient
	gemini   adapter.Gemini

	searchTimeout   time.Duration
	generateTimeout time.Duration
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithSearchTimeout bounds a single search gateway call.
func WithSearchTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.searchTimeout = d
	}
}

// WithGenerateTimeout bounds a single model call during synthesis.
func WithGenerateTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.generateTimeout = d
	}
}

// New creates a new research UseCase instance
func New(
	sessions *session.UseCase,
	search adapter.SearchClient,
	gemini adapter.Gemini,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		sessions:        sessions,
		search:          search,
		gemini:          gemini,
		searchTimeout:   30 * time.Second,
		generateTimeout: 60 * time.Second,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Input is a research request. An empty SessionID starts a new session;
// an unknown one is materialized so that clients can bring their own
// identifiers. NumResults of 0 means DefaultNumResults.
type Input struct {
	SessionID  model.SessionID
	Topic      string
	NumResults int
}

// Output carries everything a single research run produced. Session is
// the post-run snapshot; for partial and no-result runs it is the
// untouched pre-run state.
type Output struct {
	Status              model.ResearchStatus
	SessionID           model.SessionID
	Topic               string
	Timestamp           time.Time
	Results             []*model.SearchResult
	Summary             string
	Notes               string
	Insights            string
	Suggestions         []string
	ReflectingQuestions []string
	Session             *model.Session
}

// Research runs one research cycle: search the topic, synthesize the
// findings, and record the outcome on the session. Search failures are
// returned as errors. Synthesis failures degrade to a partial result
// carrying the raw search hits; the session is only updated on full
// success, while the search itself is logged to history as soon as it
// succeeds.
func (u *UseCase) Research(ctx context.Context, input *Input) (*Output, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return nil, goerr.New("research topic is required", goerr.T(model.TagValidation))
	}
	numResults := clampNumResults(input.NumResults)

	sess, err := u.sessions.GetOrCreate(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	logger := logging.From(ctx).With("session_id", sess.ID, "topic", topic)

	sctx, cancel := context.WithTimeout(ctx, u.searchTimeout)
	results, err := u.search.Search(sctx, topic, numResults)
	cancel()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search research topic",
			goerr.T(model.TagSearchFailed),
			goerr.V("topic", topic),
		)
	}

	if err := u.sessions.LogSearch(ctx, &model.SearchHistoryEntry{
		SessionID:  sess.ID,
		Query:      topic,
		NumResults: numResults,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to log search history")
	}

	out := &Output{
		SessionID: sess.ID,
		Topic:     topic,
		Timestamp: time.Now(),
		Results:   results,
		Session:   sess,
	}

	if len(results) == 0 {
		logger.Info("no search results found")
		out.Status = model.ResearchNoResults
		return out, nil
	}

	synth, err := u.synthesize(ctx, topic, results)
	if err != nil {
		logger.Warn("synthesis failed, returning raw search results", "error", err)
		out.Status = model.ResearchPartial
		return out, nil
	}
	out.Summary = synth.summary
	out.Notes = synth.notes
	out.Insights = synth.insights

	out.Suggestions, out.ReflectingQuestions = u.generateExtras(ctx, topic)

	entry := &model.ResearchEntry{
		Timestamp: out.Timestamp,
		Topic:     topic,
		Results:   results,
		Summary:   synth.summary,
		Notes:     synth.notes,
		Insights:  synth.insights,
	}
	updated, err := u.sessions.AppendResearch(ctx, sess.ID, entry)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to record research results")
	}

	out.Session = updated
	out.Status = model.ResearchFull
	logger.Info("research completed", "results", len(results))
	return out, nil
}

func clampNumResults(n int) int {
	switch {
	case n == 0:
		return DefaultNumResults
	case n < 1:
		return 1
	case n > MaxNumResults:
		return MaxNumResults
	default:
		return n
	}
}
