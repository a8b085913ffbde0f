package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// File persists every collection as a JSON document under a data directory:
// sessions.json, search_history.json and saved_research.json. The full data
// set is loaded at construction and served from memory; each mutation is
// staged on a copy, flushed to disk (temp file then rename, so a crash never
// leaves a partial file) and only then committed to the in-memory state. A
// failed flush therefore leaves both memory and disk at the previous
// snapshot.
type File struct {
	mu  sync.RWMutex
	dir string

	sessions map[model.SessionID]*model.Session
	searches []*model.SearchHistoryEntry
	saved    map[model.SessionID]map[string]*model.SavedResearch
}

// NewFile loads (or initializes) a file-backed repository rooted at dir.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create data directory", goerr.T(model.TagBackendUnavailable), goerr.V("dir", dir))
	}

	r := &File{
		dir:      dir,
		sessions: make(map[model.SessionID]*model.Session),
		saved:    make(map[model.SessionID]map[string]*model.SavedResearch),
	}

	if err := loadJSON(r.path(colSessions), &r.sessions); err != nil {
		return nil, err
	}
	if err := loadJSON(r.path(colSearchHistory), &r.searches); err != nil {
		return nil, err
	}
	var savedRecords []*model.SavedResearch
	if err := loadJSON(r.path(colSavedResearch), &savedRecords); err != nil {
		return nil, err
	}
	for _, rec := range savedRecords {
		perSession, ok := r.saved[rec.SessionID]
		if !ok {
			perSession = make(map[string]*model.SavedResearch)
			r.saved[rec.SessionID] = perSession
		}
		if rec.Sections == nil {
			rec.Sections = make(map[string]*model.SavedSection)
		}
		perSession[rec.Query] = rec
	}

	return r, nil
}

func (r *File) PutSession(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := session.Clone()
	view := cloneSessionMap(r.sessions)
	view[staged.ID] = staged
	if err := r.flushSessions(view); err != nil {
		return err
	}
	r.sessions[staged.ID] = staged
	return nil
}

func (r *File) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}
	return session.Clone(), nil
}

func (r *File) ListSessions(ctx context.Context) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s.Clone())
	}
	sortSessions(sessions)
	return sessions, nil
}

func (r *File) DeleteSession(ctx context.Context, id model.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}

	sessionView := cloneSessionMap(r.sessions)
	delete(sessionView, id)
	searchView := make([]*model.SearchHistoryEntry, 0, len(r.searches))
	for _, e := range r.searches {
		if e.SessionID != id {
			searchView = append(searchView, e)
		}
	}
	savedView := cloneSavedMap(r.saved)
	delete(savedView, id)

	// Dependents flush first: a failure part way through may prematurely
	// clean up history on disk, but can never leave records that point at a
	// deleted session.
	if err := r.flushSearches(searchView); err != nil {
		return err
	}
	if err := r.flushSaved(savedView); err != nil {
		return err
	}
	if err := r.flushSessions(sessionView); err != nil {
		return err
	}

	r.sessions = sessionView
	r.searches = searchView
	r.saved = savedView
	return nil
}

func (r *File) AppendResearch(ctx context.Context, id model.SessionID, entry *model.ResearchEntry) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}

	staged := session.Clone()
	applyResearch(staged, entry.Clone())
	view := cloneSessionMap(r.sessions)
	view[id] = staged
	if err := r.flushSessions(view); err != nil {
		return nil, err
	}
	r.sessions[id] = staged
	return staged.Clone(), nil
}

func (r *File) AppendConversation(ctx context.Context, id model.SessionID, entry *model.ConversationEntry) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}

	staged := session.Clone()
	copied := *entry
	applyConversation(staged, &copied)
	view := cloneSessionMap(r.sessions)
	view[id] = staged
	if err := r.flushSessions(view); err != nil {
		return nil, err
	}
	r.sessions[id] = staged
	return staged.Clone(), nil
}

func (r *File) AddSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	view := make([]*model.SearchHistoryEntry, len(r.searches), len(r.searches)+1)
	copy(view, r.searches)
	view = append(view, &copied)
	if err := r.flushSearches(view); err != nil {
		return err
	}
	r.searches = view
	return nil
}

func (r *File) ListSearchHistory(ctx context.Context, id model.SessionID) ([]*model.SearchHistoryEntry, error) {
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

func (r *File) ListAllSearchHistory(ctx context.Context) ([]*model.SearchHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*model.SearchHistoryEntry, 0, len(r.searches))
	for _, e := range r.searches {
		copied := *e
		entries = append(entries, &copied)
	}
	return entries, nil
}

func (r *File) PutSavedSection(ctx context.Context, id model.SessionID, query, name string, section *model.SavedSection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := cloneSavedMap(r.saved)
	records, ok := view[id]
	if !ok {
		records = make(map[string]*model.SavedResearch)
		view[id] = records
	}
	copied := *section
	upsertSection(records, id, query, name, &copied)
	if err := r.flushSaved(view); err != nil {
		return err
	}
	r.saved = view
	return nil
}

func (r *File) ListSavedResearch(ctx context.Context, id model.SessionID) ([]*model.SavedResearch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return collectSaved(r.saved[id]), nil
}

func (r *File) ListAllSavedResearch(ctx context.Context) ([]*model.SavedResearch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*model.SavedResearch, 0)
	for _, perSession := range r.saved {
		records = append(records, collectSaved(perSession)...)
	}
	sortSaved(records)
	return records, nil
}

func (r *File) DeleteSavedResearch(ctx context.Context, id model.SessionID, query string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.saved[id]
	if !ok {
		return goerr.Wrap(model.ErrSavedResearchNotFound, "no saved research", goerr.V("session_id", id), goerr.V("query", query))
	}
	if _, ok := records[query]; !ok {
		return goerr.Wrap(model.ErrSavedResearchNotFound, "no saved research", goerr.V("session_id", id), goerr.V("query", query))
	}

	view := cloneSavedMap(r.saved)
	delete(view[id], query)
	if len(view[id]) == 0 {
		delete(view, id)
	}
	if err := r.flushSaved(view); err != nil {
		return err
	}
	r.saved = view
	return nil
}

func (r *File) Kind() string { return "file" }

func (r *File) Close(ctx context.Context) error { return nil }

func (r *File) path(collection string) string {
	return filepath.Join(r.dir, collection+".json")
}

func (r *File) flushSessions(view map[model.SessionID]*model.Session) error {
	return writeJSON(r.path(colSessions), view)
}

func (r *File) flushSearches(view []*model.SearchHistoryEntry) error {
	return writeJSON(r.path(colSearchHistory), view)
}

func (r *File) flushSaved(view map[model.SessionID]map[string]*model.SavedResearch) error {
	records := make([]*model.SavedResearch, 0)
	for _, perSession := range view {
		for _, rec := range perSession {
			records = append(records, rec)
		}
	}
	sortSaved(records)
	return writeJSON(r.path(colSavedResearch), records)
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return goerr.Wrap(err, "failed to read data file", goerr.T(model.TagBackendUnavailable), goerr.V("path", path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return goerr.Wrap(err, "broken data file", goerr.T(model.TagBackendUnavailable), goerr.V("path", path))
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal data file", goerr.T(model.TagBackendUnavailable), goerr.V("path", path))
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return goerr.Wrap(err, "failed to write data file", goerr.T(model.TagBackendUnavailable), goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return goerr.Wrap(err, "failed to replace data file", goerr.T(model.TagBackendUnavailable), goerr.V("path", path))
	}
	return nil
}

func cloneSessionMap(sessions map[model.SessionID]*model.Session) map[model.SessionID]*model.Session {
	view := make(map[model.SessionID]*model.Session, len(sessions))
	for id, s := range sessions {
		view[id] = s
	}
	return view
}

// cloneSavedMap deep-copies the records so that staging an upsert on the
// view can never mutate committed state through a shared pointer.
func cloneSavedMap(saved map[model.SessionID]map[string]*model.SavedResearch) map[model.SessionID]map[string]*model.SavedResearch {
	view := make(map[model.SessionID]map[string]*model.SavedResearch, len(saved))
	for id, perSession := range saved {
		inner := make(map[string]*model.SavedResearch, len(perSession))
		for query, rec := range perSession {
			inner[query] = rec.Clone()
		}
		view[id] = inner
	}
	return view
}
