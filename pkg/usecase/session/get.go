package session

import (
	"context"

	"github.com/m-mizutani/aria/pkg/model"
)

// Get retrieves a session by ID
func (u *UseCase) Get(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return u.repo.GetSession(ctx, id)
}
