package session

import (
	"github.com/m-mizutani/aria/pkg/repository"
)

// UseCase provides session lifecycle operations and owns the bookkeeping of
// session-scoped records
type UseCase struct {
	repo repository.Repository
}

// New creates a new session UseCase instance
func New(repo repository.Repository) *UseCase {
	return &UseCase{
		repo: repo,
	}
}
