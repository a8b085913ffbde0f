package session

import (
	"context"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
)

// AppendResearch stamps and appends a research entry. The storage backend
// applies the whole update (entry, current topic, sources, UpdatedAt) as one
// serialized step and returns the updated session.
func (u *UseCase) AppendResearch(ctx context.Context, id model.SessionID, entry *model.ResearchEntry) (*model.Session, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return u.repo.AppendResearch(ctx, id, entry)
}

// AppendConversation stamps and appends one conversation turn.
func (u *UseCase) AppendConversation(ctx context.Context, id model.SessionID, entry *model.ConversationEntry) (*model.Session, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return u.repo.AppendConversation(ctx, id, entry)
}
