package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Session is the unit of continuity for a user's research activity. All
// histories are append-only; storage adapters must never reorder or truncate
// them except through an explicit delete of the whole session.
type Session struct {
	ID                  SessionID            `json:"session_id" bson:"session_id" firestore:"session_id"`
	CurrentTopic        string               `json:"current_topic" bson:"current_topic" firestore:"current_topic"`
	Sources             []*SearchResult      `json:"sources" bson:"sources" firestore:"sources"`
	ResearchHistory     []*ResearchEntry     `json:"research_history" bson:"research_history" firestore:"research_history"`
	ConversationHistory []*ConversationEntry `json:"conversation_history" bson:"conversation_history" firestore:"conversation_history"`
	CreatedAt           time.Time            `json:"created_at" bson:"created_at" firestore:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at" bson:"updated_at" firestore:"updated_at"`
}

// NewSession creates an empty session with the given ID. An empty ID gets a
// freshly generated one.
func NewSession(id SessionID) *Session {
	if id == "" {
		id = NewSessionID()
	}
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone deep-copies the session so that storage adapters never hand out
// slices aliasing their live state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Sources = cloneResults(s.Sources)
	c.ResearchHistory = make([]*ResearchEntry, 0, len(s.ResearchHistory))
	for _, e := range s.ResearchHistory {
		c.ResearchHistory = append(c.ResearchHistory, e.Clone())
	}
	c.ConversationHistory = make([]*ConversationEntry, 0, len(s.ConversationHistory))
	for _, e := range s.ConversationHistory {
		copied := *e
		c.ConversationHistory = append(c.ConversationHistory, &copied)
	}
	return &c
}

// Summary reduces the session to its list representation.
func (s *Session) Summary() *SessionSummary {
	return &SessionSummary{
		ID:                s.ID,
		CurrentTopic:      s.CurrentTopic,
		ResearchCount:     len(s.ResearchHistory),
		ConversationCount: len(s.ConversationHistory),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// LatestResearch returns the most recent research entry, or nil for a
// session that has none yet.
func (s *Session) LatestResearch() *ResearchEntry {
	if len(s.ResearchHistory) == 0 {
		return nil
	}
	return s.ResearchHistory[len(s.ResearchHistory)-1]
}

// RecentConversations returns up to n of the latest conversation turns in
// chronological order.
func (s *Session) RecentConversations(n int) []*ConversationEntry {
	if n <= 0 || len(s.ConversationHistory) == 0 {
		return nil
	}
	if len(s.ConversationHistory) > n {
		return s.ConversationHistory[len(s.ConversationHistory)-n:]
	}
	return s.ConversationHistory
}

// SessionSummary is the bounded payload for session listings. Full histories
// are only available through a direct session fetch.
type SessionSummary struct {
	ID                SessionID `json:"session_id"`
	CurrentTopic      string    `json:"current_topic"`
	ResearchCount     int       `json:"research_count"`
	ConversationCount int       `json:"conversation_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ResearchEntry records one completed research run: the query results and
// the three synthesized artifacts derived from them.
type ResearchEntry struct {
	Timestamp time.Time       `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
	Topic     string          `json:"topic" bson:"topic" firestore:"topic"`
	Results   []*SearchResult `json:"results" bson:"results" firestore:"results"`
	Summary   string          `json:"summary" bson:"summary" firestore:"summary"`
	Notes     string          `json:"notes" bson:"notes" firestore:"notes"`
	Insights  string          `json:"insights" bson:"insights" firestore:"insights"`
}

// Clone deep-copies the entry including its result list.
func (e *ResearchEntry) Clone() *ResearchEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Results = cloneResults(e.Results)
	return &c
}

// ConversationEntry is a single user/assistant exchange.
type ConversationEntry struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
	User      string    `json:"user" bson:"user" firestore:"user"`
	Assistant string    `json:"assistant" bson:"assistant" firestore:"assistant"`
}

func cloneResults(results []*SearchResult) []*SearchResult {
	if results == nil {
		return nil
	}
	out := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		copied := *r
		out = append(out, &copied)
	}
	return out
}
