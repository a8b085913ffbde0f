package chat

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/aria/pkg/adapter"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const (
	chatTemperature float32 = 0.4
	chatMaxTokens   int32   = 600

	// DefaultHistoryWindow is how many recent conversation turns are
	// replayed into the prompt.
	DefaultHistoryWindow = 5
)

// UseCase provides conversational follow-up on researched sessions.
type UseCase struct {
	sessions *session.UseCase
	gemini   adapter.Gemini

	chatTimeout   time.Duration
	historyWindow int
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithChatTimeout bounds a single model call.
func WithChatTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.chatTimeout = d
	}
}

// WithHistoryWindow overrides how many recent turns go into the prompt.
func WithHistoryWindow(n int) Option {
	return func(uc *UseCase) {
		if n > 0 {
			uc.historyWindow = n
		}
	}
}

// New creates a new chat UseCase instance
func New(
	sessions *session.UseCase,
	gemini adapter.Gemini,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		sessions:      sessions,
		gemini:        gemini,
		chatTimeout:   60 * time.Second,
		historyWindow: DefaultHistoryWindow,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Input is one chat turn. An empty or unknown SessionID yields a fresh
// session, so chatting before researching is allowed.
type Input struct {
	SessionID model.SessionID
	Message   string
}

// Output carries the assistant response and the post-turn session.
type Output struct {
	SessionID model.SessionID
	Response  string
	Timestamp time.Time
	Session   *model.Session
}

// Chat answers one user message grounded in the session's latest
// research and recent conversation, then records the exchange. A model
// failure leaves the session untouched.
func (u *UseCase) Chat(ctx context.Context, input *Input) (*Output, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, goerr.New("chat message is required", goerr.T(model.TagValidation))
	}

	sess, err := u.sessions.GetOrCreate(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	prompt, err := buildMessagePrompt(sess, message, u.historyWindow)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(personaPromptRaw, genai.RoleUser),
		Temperature:       genai.Ptr(chatTemperature),
		MaxOutputTokens:   chatMaxTokens,
	}

	cctx, cancel := context.WithTimeout(ctx, u.chatTimeout)
	resp, err := u.gemini.GenerateContent(cctx, contents, config)
	cancel()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate chat response",
			goerr.T(model.TagChatFailed),
			goerr.V("session_id", sess.ID),
		)
	}
	response := adapter.ResponseText(resp)
	if response == "" {
		return nil, goerr.New("empty response from model",
			goerr.T(model.TagChatFailed),
			goerr.V("session_id", sess.ID),
		)
	}

	entry := &model.ConversationEntry{
		Timestamp: time.Now(),
		User:      message,
		Assistant: response,
	}
	updated, err := u.sessions.AppendConversation(ctx, sess.ID, entry)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to record conversation")
	}

	logging.From(ctx).Debug("chat turn recorded",
		"session_id", sess.ID,
		"turns", len(updated.ConversationHistory),
	)

	return &Output{
		SessionID: sess.ID,
		Response:  response,
		Timestamp: entry.Timestamp,
		Session:   updated,
	}, nil
}
