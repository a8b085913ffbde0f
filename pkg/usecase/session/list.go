package session

import (
	"context"

	"github.com/m-mizutani/aria/pkg/model"
)

// List retrieves summaries of all sessions, oldest first. Full histories
// stay out of listings to keep the payload bounded.
func (u *UseCase) List(ctx context.Context) ([]*model.SessionSummary, error) {
	sessions, err := u.repo.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summary())
	}
	return summaries, nil
}
