package model

import "time"

// SearchResult is one document returned by the search provider, normalized
// to the fields the synthesis prompts cite.
type SearchResult struct {
	Title     string `json:"title" bson:"title" firestore:"title"`
	Link      string `json:"link" bson:"link" firestore:"link"`
	Author    string `json:"author" bson:"author" firestore:"author"`
	Published string `json:"published" bson:"published" firestore:"published"`
	Snippet   string `json:"snippet" bson:"snippet" firestore:"snippet"`
}

// SearchHistoryEntry is the immutable audit record of one search call. It is
// written once the provider call succeeds, even when later synthesis fails.
type SearchHistoryEntry struct {
	SessionID  SessionID `json:"session_id" bson:"session_id" firestore:"session_id"`
	Query      string    `json:"query" bson:"query" firestore:"query"`
	NumResults int       `json:"num_results" bson:"num_results" firestore:"num_results"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
}
