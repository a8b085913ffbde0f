package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore stores each collection in the document database of the same
// name. Session appends run inside a transaction keyed by the session
// document, which serializes concurrent writers per session.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore-backed repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.T(model.TagBackendUnavailable),
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) sessionRef(id model.SessionID) *firestore.DocumentRef {
	return r.client.Collection(colSessions).Doc(string(id))
}

func (r *Firestore) PutSession(ctx context.Context, session *model.Session) error {
	if _, err := r.sessionRef(session.ID).Set(ctx, session); err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", session.ID))
	}
	return nil
}

func (r *Firestore) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	snap, err := r.sessionRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}

	var session model.Session
	if err := snap.DataTo(&session); err != nil {
		return nil, goerr.Wrap(err, "failed to decode session", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	return &session, nil
}

func (r *Firestore) ListSessions(ctx context.Context) ([]*model.Session, error) {
	iter := r.client.Collection(colSessions).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	sessions := make([]*model.Session, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list sessions", goerr.T(model.TagBackendUnavailable))
		}
		var session model.Session
		if err := snap.DataTo(&session); err != nil {
			return nil, goerr.Wrap(err, "failed to decode session", goerr.T(model.TagBackendUnavailable))
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

func (r *Firestore) DeleteSession(ctx context.Context, id model.SessionID) error {
	if _, err := r.GetSession(ctx, id); err != nil {
		return err
	}

	refs := []*firestore.DocumentRef{r.sessionRef(id)}
	for _, collection := range []string{colSearchHistory, colSavedResearch} {
		found, err := r.collectRefs(ctx, collection, id)
		if err != nil {
			return err
		}
		refs = append(refs, found...)
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			return goerr.Wrap(err, "failed to enqueue delete", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to delete session documents", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
		}
	}
	return nil
}

func (r *Firestore) collectRefs(ctx context.Context, collection string, id model.SessionID) ([]*firestore.DocumentRef, error) {
	iter := r.client.Collection(collection).Where("session_id", "==", string(id)).Documents(ctx)
	defer iter.Stop()

	refs := make([]*firestore.DocumentRef, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query documents", goerr.T(model.TagBackendUnavailable), goerr.V("collection", collection))
		}
		refs = append(refs, snap.Ref)
	}
	return refs, nil
}

func (r *Firestore) AppendResearch(ctx context.Context, id model.SessionID, entry *model.ResearchEntry) (*model.Session, error) {
	var updated *model.Session
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(r.sessionRef(id))
		if err != nil {
			return err
		}
		var session model.Session
		if err := snap.DataTo(&session); err != nil {
			return err
		}
		applyResearch(&session, entry)
		updated = &session
		return tx.Set(r.sessionRef(id), &session)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
		}
		return nil, goerr.Wrap(err, "failed to append research", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	return updated, nil
}

func (r *Firestore) AppendConversation(ctx context.Context, id model.SessionID, entry *model.ConversationEntry) (*model.Session, error) {
	var updated *model.Session
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(r.sessionRef(id))
		if err != nil {
			return err
		}
		var session model.Session
		if err := snap.DataTo(&session); err != nil {
			return err
		}
		applyConversation(&session, entry)
		updated = &session
		return tx.Set(r.sessionRef(id), &session)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
		}
		return nil, goerr.Wrap(err, "failed to append conversation", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	return updated, nil
}

func (r *Firestore) AddSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error {
	if _, err := r.client.Collection(colSearchHistory).NewDoc().Create(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to add search history", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", entry.SessionID))
	}
	return nil
}

func (r *Firestore) ListSearchHistory(ctx context.Context, id model.SessionID) ([]*model.SearchHistoryEntry, error) {
	q := r.client.Collection(colSearchHistory).
		Where("session_id", "==", string(id)).
		OrderBy("timestamp", firestore.Asc)
	return r.searchEntries(ctx, q)
}

func (r *Firestore) ListAllSearchHistory(ctx context.Context) ([]*model.SearchHistoryEntry, error) {
	q := r.client.Collection(colSearchHistory).OrderBy("timestamp", firestore.Asc)
	return r.searchEntries(ctx, q)
}

func (r *Firestore) searchEntries(ctx context.Context, q firestore.Query) ([]*model.SearchHistoryEntry, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	entries := make([]*model.SearchHistoryEntry, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list search history", goerr.T(model.TagBackendUnavailable))
		}
		var entry model.SearchHistoryEntry
		if err := snap.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode search history", goerr.T(model.TagBackendUnavailable))
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (r *Firestore) PutSavedSection(ctx context.Context, id model.SessionID, query, name string, section *model.SavedSection) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		q := r.client.Collection(colSavedResearch).
			Where("session_id", "==", string(id)).
			Where("query", "==", query).
			Limit(1)
		snaps, err := tx.Documents(q).GetAll()
		if err != nil {
			return err
		}

		now := time.Now()
		if len(snaps) == 0 {
			record := &model.SavedResearch{
				SessionID: id,
				Query:     query,
				Sections:  map[string]*model.SavedSection{name: section},
				CreatedAt: now,
				UpdatedAt: now,
			}
			return tx.Create(r.client.Collection(colSavedResearch).NewDoc(), record)
		}

		var record model.SavedResearch
		if err := snaps[0].DataTo(&record); err != nil {
			return err
		}
		if record.Sections == nil {
			record.Sections = make(map[string]*model.SavedSection)
		}
		record.Sections[name] = section
		record.UpdatedAt = now
		return tx.Set(snaps[0].Ref, &record)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to save research section",
			goerr.T(model.TagBackendUnavailable),
			goerr.V("session_id", id), goerr.V("query", query), goerr.V("section", name))
	}
	return nil
}

func (r *Firestore) ListSavedResearch(ctx context.Context, id model.SessionID) ([]*model.SavedResearch, error) {
	q := r.client.Collection(colSavedResearch).
		Where("session_id", "==", string(id)).
		OrderBy("created_at", firestore.Asc)
	return r.savedRecords(ctx, q)
}

func (r *Firestore) ListAllSavedResearch(ctx context.Context) ([]*model.SavedResearch, error) {
	q := r.client.Collection(colSavedResearch).OrderBy("created_at", firestore.Asc)
	return r.savedRecords(ctx, q)
}

func (r *Firestore) savedRecords(ctx context.Context, q firestore.Query) ([]*model.SavedResearch, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	records := make([]*model.SavedResearch, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list saved research", goerr.T(model.TagBackendUnavailable))
		}
		var record model.SavedResearch
		if err := snap.DataTo(&record); err != nil {
			return nil, goerr.Wrap(err, "failed to decode saved research", goerr.T(model.TagBackendUnavailable))
		}
		records = append(records, &record)
	}
	return records, nil
}

func (r *Firestore) DeleteSavedResearch(ctx context.Context, id model.SessionID, query string) error {
	iter := r.client.Collection(colSavedResearch).
		Where("session_id", "==", string(id)).
		Where("query", "==", query).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return goerr.Wrap(model.ErrSavedResearchNotFound, "no saved research", goerr.V("session_id", id), goerr.V("query", query))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to find saved research", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	if _, err := snap.Ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete saved research", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	return nil
}

func (r *Firestore) Kind() string { return "firestore" }

func (r *Firestore) Close(ctx context.Context) error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client", goerr.T(model.TagBackendUnavailable))
	}
	return nil
}
