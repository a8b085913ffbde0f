package repository

import (
	"context"

	"github.com/m-mizutani/aria/pkg/model"
)

// Collection names shared by the document store adapters. The file adapter
// uses them as file names under its data directory.
const (
	colSessions      = "sessions"
	colSearchHistory = "search_history"
	colSavedResearch = "saved_research"
)

// Repository defines the persistence boundary for session data. All
// implementations provide identical semantics so that backends can be
// swapped by configuration alone: upserts, NotFound on missing keys,
// oldest-first listings, and atomic per-session appends.
type Repository interface {
	// PutSession saves a session, replacing any existing one with the same ID
	PutSession(ctx context.Context, session *model.Session) error

	// GetSession retrieves a session by ID. Missing sessions yield
	// model.ErrSessionNotFound.
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)

	// ListSessions retrieves all sessions ordered by creation time
	ListSessions(ctx context.Context) ([]*model.Session, error)

	// DeleteSession removes a session together with its search history and
	// saved research
	DeleteSession(ctx context.Context, id model.SessionID) error

	// AppendResearch atomically appends a research entry, updates the current
	// topic, extends the source list and refreshes UpdatedAt. It returns the
	// updated session.
	AppendResearch(ctx context.Context, id model.SessionID, entry *model.ResearchEntry) (*model.Session, error)

	// AppendConversation atomically appends a conversation turn and refreshes
	// UpdatedAt. It returns the updated session.
	AppendConversation(ctx context.Context, id model.SessionID, entry *model.ConversationEntry) (*model.Session, error)

	// AddSearchHistory records one search call
	AddSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error

	// ListSearchHistory retrieves the search records of one session, oldest
	// first. Unknown sessions yield an empty list.
	ListSearchHistory(ctx context.Context, id model.SessionID) ([]*model.SearchHistoryEntry, error)

	// ListAllSearchHistory retrieves the search records of every session
	ListAllSearchHistory(ctx context.Context) ([]*model.SearchHistoryEntry, error)

	// PutSavedSection upserts one named section under (session, query),
	// creating the saved research record when absent
	PutSavedSection(ctx context.Context, id model.SessionID, query, name string, section *model.SavedSection) error

	// ListSavedResearch retrieves the saved research of one session, oldest
	// first. Unknown sessions yield an empty list.
	ListSavedResearch(ctx context.Context, id model.SessionID) ([]*model.SavedResearch, error)

	// ListAllSavedResearch retrieves saved research across every session
	ListAllSavedResearch(ctx context.Context) ([]*model.SavedResearch, error)

	// DeleteSavedResearch removes the saved research of one query. Missing
	// records yield model.ErrSavedResearchNotFound.
	DeleteSavedResearch(ctx context.Context, id model.SessionID, query string) error

	// Kind reports the backend name for logs and health checks
	Kind() string

	// Close releases backend resources
	Close(ctx context.Context) error
}
