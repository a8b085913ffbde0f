package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Memory keeps all records in process memory. It is the default backend for
// tests and throwaway runs. Mutations run under the write lock so that
// read-modify-write sequences on one session never interleave; accessors
// return deep copies so callers cannot alias live state.
type Memory struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*model.Session
	searches []*model.SearchHistoryEntry
	saved    map[model.SessionID]map[string]*model.SavedResearch
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[model.SessionID]*model.Session),
		saved:    make(map[model.SessionID]map[string]*model.SavedResearch),
	}
}

func (r *Memory) PutSession(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *Memory) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}
	return session.Clone(), nil
}

func (r *Memory) ListSessions(ctx context.Context) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s.Clone())
	}
	sortSessions(sessions)
	return sessions, nil
}

func (r *Memory) DeleteSession(ctx context.Context, id model.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}
	delete(r.sessions, id)
	delete(r.saved, id)
	r.searches = filterSearches(r.searches, id)
	return nil
}

func (r *Memory) AppendResearch(ctx context.Context, id model.SessionID, entry *model.ResearchEntry) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}
	applyResearch(session, entry.Clone())
	return session.Clone(), nil
}

func (r *Memory) AppendConversation(ctx context.Context, id model.SessionID, entry *model.ConversationEntry) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}
	copied := *entry
	applyConversation(session, &copied)
	return session.Clone(), nil
}

func (r *Memory) AddSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	r.searches = append(r.searches, &copied)
	return nil
}

func (r *Memory) ListSearchHistory(ctx context.Context, id model.SessionID) ([]*model.SearchHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.SearchHistoryEntry, 0)
	for _, e := range r.searches {
		if e.SessionID == id {
			copied := *e
			entries = append(entries, &copied)
		}
	}
	return entries, nil
}

func (r *Memory) ListAllSearchHistory(ctx context.Context) ([]*model.SearchHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.SearchHistoryEntry, 0, len(r.searches))
	for _, e := range r.searches {
		copied := *e
		entries = append(entries, &copied)
	}
	return entries, nil
}

func (r *Memory) PutSavedSection(ctx context.Context, id model.SessionID, query, name string, section *model.SavedSection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.saved[id]
	if !ok {
		records = make(map[string]*model.SavedResearch)
		r.saved[id] = records
	}
	copied := *section
	upsertSection(records, id, query, name, &copied)
	return nil
}

func (r *Memory) ListSavedResearch(ctx context.Context, id model.SessionID) ([]*model.SavedResearch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return collectSaved(r.saved[id]), nil
}

func (r *Memory) ListAllSavedResearch(ctx context.Context) ([]*model.SavedResearch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*model.SavedResearch, 0)
	for _, perSession := range r.saved {
		records = append(records, collectSaved(perSession)...)
	}
	sortSaved(records)
	return records, nil
}

func (r *Memory) DeleteSavedResearch(ctx context.Context, id model.SessionID, query string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.saved[id]
	if !ok {
		return goerr.Wrap(model.ErrSavedResearchNotFound, "no saved research", goerr.V("session_id", id), goerr.V("query", query))
	}
	if _, ok := records[query]; !ok {
		return goerr.Wrap(model.ErrSavedResearchNotFound, "no saved research", goerr.V("session_id", id), goerr.V("query", query))
	}
	delete(records, query)
	if len(records) == 0 {
		delete(r.saved, id)
	}
	return nil
}

func (r *Memory) Kind() string { return "memory" }

func (r *Memory) Close(ctx context.Context) error { return nil }

// applyResearch performs the single-step session update of a research run:
// append the entry, switch the current topic, extend sources and refresh
// UpdatedAt. Callers hold the write lock.
func applyResearch(session *model.Session, entry *model.ResearchEntry) {
	session.ResearchHistory = append(session.ResearchHistory, entry)
	session.CurrentTopic = entry.Topic
	for _, res := range entry.Results {
		copied := *res
		session.Sources = append(session.Sources, &copied)
	}
	session.UpdatedAt = time.Now()
}

func applyConversation(session *model.Session, entry *model.ConversationEntry) {
	session.ConversationHistory = append(session.ConversationHistory, entry)
	session.UpdatedAt = time.Now()
}

func upsertSection(records map[string]*model.SavedResearch, id model.SessionID, query, name string, section *model.SavedSection) {
	now := time.Now()
	record, ok := records[query]
	if !ok {
		record = &model.SavedResearch{
			SessionID: id,
			Query:     query,
			Sections:  make(map[string]*model.SavedSection),
			CreatedAt: now,
		}
		records[query] = record
	}
	record.Sections[name] = section
	record.UpdatedAt = now
}

func filterSearches(entries []*model.SearchHistoryEntry, id model.SessionID) []*model.SearchHistoryEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.SessionID != id {
			kept = append(kept, e)
		}
	}
	return kept
}

func collectSaved(records map[string]*model.SavedResearch) []*model.SavedResearch {
	out := make([]*model.SavedResearch, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Clone())
	}
	sortSaved(out)
	return out
}

// sortSessions orders by creation time so listings are stable regardless of
// map iteration order. IDs break ties between same-instant records.
func sortSessions(sessions []*model.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

func sortSaved(records []*model.SavedResearch) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			if records[i].SessionID == records[j].SessionID {
				return records[i].Query < records[j].Query
			}
			return records[i].SessionID < records[j].SessionID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
