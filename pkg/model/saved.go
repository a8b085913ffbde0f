package model

import "time"

// SavedResearch groups the sections a user kept for one research query.
// Records are keyed by (SessionID, Query); saving a section under an unknown
// key creates the record.
type SavedResearch struct {
	SessionID SessionID                `json:"session_id" bson:"session_id" firestore:"session_id"`
	Query     string                   `json:"query" bson:"query" firestore:"query"`
	Sections  map[string]*SavedSection `json:"sections" bson:"sections" firestore:"sections"`
	CreatedAt time.Time                `json:"created_at" bson:"created_at" firestore:"created_at"`
	UpdatedAt time.Time                `json:"updated_at" bson:"updated_at" firestore:"updated_at"`
}

// Clone deep-copies the record including its section map.
func (r *SavedResearch) Clone() *SavedResearch {
	if r == nil {
		return nil
	}
	c := *r
	c.Sections = make(map[string]*SavedSection, len(r.Sections))
	for name, sec := range r.Sections {
		copied := *sec
		c.Sections[name] = &copied
	}
	return &c
}

// SavedSection is one named piece of saved content. Re-saving the same name
// replaces it wholesale.
type SavedSection struct {
	Content string    `json:"content" bson:"content" firestore:"content"`
	SavedAt time.Time `json:"saved_at" bson:"saved_at" firestore:"saved_at"`
}
