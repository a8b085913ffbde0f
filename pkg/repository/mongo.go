package repository

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo stores each collection in the MongoDB collection of the same name.
// Session appends are single-document update operations, which the server
// applies atomically, so concurrent writers per session never lose updates.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to MongoDB and prepares the repository. Index creation
// is best effort: a secondary without index permissions still serves.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to mongodb", goerr.T(model.TagBackendUnavailable))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, goerr.Wrap(err, "failed to ping mongodb", goerr.T(model.TagBackendUnavailable))
	}

	r := &Mongo{
		client: client,
		db:     client.Database(database),
	}
	if err := r.createIndexes(ctx); err != nil {
		logging.From(ctx).Warn("failed to create mongodb indexes", "error", err)
	}
	return r, nil
}

func (r *Mongo) createIndexes(ctx context.Context) error {
	_, err := r.db.Collection(colSessions).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = r.db.Collection(colSearchHistory).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = r.db.Collection(colSavedResearch).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "query", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *Mongo) PutSession(ctx context.Context, session *model.Session) error {
	filter := bson.M{"session_id": session.ID}
	_, err := r.db.Collection(colSessions).ReplaceOne(ctx, filter, session, options.Replace().SetUpsert(true))
	if err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", session.ID))
	}
	return nil
}

func (r *Mongo) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	var session model.Session
	err := r.db.Collection(colSessions).FindOne(ctx, bson.M{"session_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	return &session, nil
}

func (r *Mongo) ListSessions(ctx context.Context) ([]*model.Session, error) {
	sort := bson.D{{Key: "created_at", Value: 1}, {Key: "session_id", Value: 1}}
	cur, err := r.db.Collection(colSessions).Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sessions", goerr.T(model.TagBackendUnavailable))
	}
	sessions := make([]*model.Session, 0)
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, goerr.Wrap(err, "failed to decode sessions", goerr.T(model.TagBackendUnavailable))
	}
	return sessions, nil
}

func (r *Mongo) DeleteSession(ctx context.Context, id model.SessionID) error {
	res, err := r.db.Collection(colSessions).DeleteOne(ctx, bson.M{"session_id": id})
	if err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	if res.DeletedCount == 0 {
		return goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
	}

	for _, collection := range []string{colSearchHistory, colSavedResearch} {
		if _, err := r.db.Collection(collection).DeleteMany(ctx, bson.M{"session_id": id}); err != nil {
			return goerr.Wrap(err, "failed to cascade session delete",
				goerr.T(model.TagBackendUnavailable),
				goerr.V("session_id", id), goerr.V("collection", collection))
		}
	}
	return nil
}

func (r *Mongo) AppendResearch(ctx context.Context, id model.SessionID, entry *model.ResearchEntry) (*model.Session, error) {
	sources := entry.Results
	if sources == nil {
		sources = []*model.SearchResult{}
	}
	update := bson.M{
		"$push": bson.M{
			"research_history": entry,
			"sources":          bson.M{"$each": sources},
		},
		"$set": bson.M{
			"current_topic": entry.Topic,
			"updated_at":    time.Now(),
		},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *Mongo) AppendConversation(ctx context.Context, id model.SessionID, entry *model.ConversationEntry) (*model.Session, error) {
	update := bson.M{
		"$push": bson.M{"conversation_history": entry},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *Mongo) findOneAndUpdate(ctx context.Context, id model.SessionID, update bson.M) (*model.Session, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Session
	err := r.db.Collection(colSessions).FindOneAndUpdate(ctx, bson.M{"session_id": id}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, goerr.Wrap(model.ErrSessionNotFound, "no such session", goerr.V("session_id", id))
		}
		return nil, goerr.Wrap(err, "failed to update session", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", id))
	}
	return &updated, nil
}

func (r *Mongo) AddSearchHistory(ctx context.Context, entry *model.SearchHistoryEntry) error {
	if _, err := r.db.Collection(colSearchHistory).InsertOne(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to add search history", goerr.T(model.TagBackendUnavailable), goerr.V("session_id", entry.SessionID))
	}
	return nil
}

func (r *Mongo) ListSearchHistory(ctx context.Context, id model.SessionID) ([]*model.SearchHistoryEntry, error) {
	return r.searchEntries(ctx, bson.M{"session_id": id})
}

func (r *Mongo) ListAllSearchHistory(ctx context.Context) ([]*model.SearchHistoryEntry, error) {
	return r.searchEntries(ctx, bson.M{})
}

func (r *Mongo) searchEntries(ctx context.Context, filter bson.M) ([]*model.SearchHistoryEntry, error) {
	sort := bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}
	cur, err := r.db.Collection(colSearchHistory).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list search history", goerr.T(model.TagBackendUnavailable))
	}
	entries := make([]*model.SearchHistoryEntry, 0)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, goerr.Wrap(err, "failed to decode search history", goerr.T(model.TagBackendUnavailable))
	}
	return entries, nil
}

func (r *Mongo) PutSavedSection(ctx context.Context, id model.SessionID, query, name string, section *model.SavedSection) error {
	now := time.Now()
	filter := bson.M{"session_id": id, "query": query}
	update := bson.M{
		"$set":         bson.M{"sections." + name: section, "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := r.db.Collection(colSavedResearch).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return goerr.Wrap(err, "failed to save research section",
			goerr.T(model.TagBackendUnavailable),
			goerr.V("session_id", id), goerr.V("query", query), goerr.V("section", name))
	}
	return nil
}

func (r *Mongo) ListSavedResearch(ctx context.Context, id model.SessionID) ([]*model.SavedResearch, error) {
	return r.savedRecords(ctx, bson.M{"session_id": id})
}

func (r *Mongo) ListAllSavedResearch(ctx context.Context) ([]*model.SavedResearch, error) {
	return r.savedRecords(ctx, bson.M{})
}

func (r *Mongo) savedRecords(ctx context.Context, filter bson.M) ([]*model.SavedResearch, error) {
	sort := bson.D{{Key: "created_at", Value: 1}, {Key: "query", Value: 1}}
	cur, err := r.db.Collection(colSavedResearch).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list saved research", goerr.T(model.TagBackendUnavailable))
	}
	records := make([]*model.SavedResearch, 0)
	if err := cur.All(ctx, &records); err != nil {
		return nil, goerr.Wrap(err, "failed to decode saved research", goerr.T(model.TagBackendUnavailable))
	}
	return records, nil
}

func (r *Mongo) DeleteSavedResearch(ctx context.Context, id model.SessionID, query string) error {
	res, err := r.db.Collection(colSavedResearch).DeleteOne(ctx, bson.M{"session_id": id, "query": query})
	if err != nil {
		return goerr.Wrap(err, "failed to delete saved research",
			goerr.T(model.TagBackendUnavailable),
			goerr.V("session_id", id), goerr.V("query", query))
	}
	if res.DeletedCount == 0 {
		return goerr.Wrap(model.ErrSavedResearchNotFound, "no saved research", goerr.V("session_id", id), goerr.V("query", query))
	}
	return nil
}

func (r *Mongo) Kind() string { return "mongo" }

func (r *Mongo) Close(ctx context.Context) error {
	if err := r.client.Disconnect(ctx); err != nil {
		return goerr.Wrap(err, "failed to disconnect mongodb", goerr.T(model.TagBackendUnavailable))
	}
	return nil
}
