package session

import (
	"context"
	"errors"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/utils/logging"
)

// Create starts a fresh session with a generated ID and persists it
// immediately.
func (u *UseCase) Create(ctx context.Context) (*model.Session, error) {
	session := model.NewSession("")
	if err := u.repo.PutSession(ctx, session); err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("created session", "session_id", session.ID)
	return session, nil
}

// GetOrCreate resolves a session leniently: an empty ID starts a new
// session, an unknown ID is materialized under that ID. The operation is
// idempotent; concurrent callers racing on the same new ID both end up with
// the same stored session because creation is an upsert.
func (u *UseCase) GetOrCreate(ctx context.Context, id model.SessionID) (*model.Session, error) {
	if id == "" {
		return u.Create(ctx)
	}

	session, err := u.repo.GetSession(ctx, id)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, model.ErrSessionNotFound) {
		return nil, err
	}

	session = model.NewSession(id)
	if err := u.repo.PutSession(ctx, session); err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("materialized session", "session_id", id)
	return session, nil
}
