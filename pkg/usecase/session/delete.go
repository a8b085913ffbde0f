package session

import (
	"context"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/utils/logging"
)

// Delete removes a session and cascades to its search history and saved
// research so no orphaned records survive.
func (u *UseCase) Delete(ctx context.Context, id model.SessionID) error {
	if err := u.repo.DeleteSession(ctx, id); err != nil {
		return err
	}

	logging.From(ctx).Info("deleted session", "session_id", id)
	return nil
}
