package session

import (
	"context"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
)

// LogSearch records one search call against a session. Entries are written
// even when the research that triggered them fails later on.
func (u *UseCase) LogSearch(ctx context.Context, entry *model.SearchHistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return u.repo.AddSearchHistory(ctx, entry)
}

// SearchHistory retrieves the search records of one session, oldest first
func (u *UseCase) SearchHistory(ctx context.Context, id model.SessionID) ([]*model.SearchHistoryEntry, error) {
	return u.repo.ListSearchHistory(ctx, id)
}

// AllSearchHistory retrieves search records across every session
func (u *UseCase) AllSearchHistory(ctx context.Context) ([]*model.SearchHistoryEntry, error) {
	return u.repo.ListAllSearchHistory(ctx)
}
