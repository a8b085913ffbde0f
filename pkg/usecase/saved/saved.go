package saved

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/repository"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase provides saved research curation: users pin individual
// sections (summary, notes, whatever they name) of a research result
// under their originating query.
type UseCase struct {
	repo repository.Repository
}

// New creates a new saved research UseCase instance
func New(repo repository.Repository) *UseCase {
	return &UseCase{repo: repo}
}

// SaveInput identifies one section to pin. Query and Name are
// normalized by trimming surrounding whitespace.
type SaveInput struct {
	SessionID model.SessionID
	Query     string
	Name      string
	Content   string
}

// SaveSection upserts one named section of the (session, query) record,
// creating the record on first save.
func (u *UseCase) SaveSection(ctx context.Context, input *SaveInput) error {
	if input.SessionID == "" {
		return goerr.New("session id is required", goerr.T(model.TagValidation))
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return goerr.New("query is required", goerr.T(model.TagValidation))
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return goerr.New("section name is required", goerr.T(model.TagValidation))
	}

	section := &model.SavedSection{
		Content: input.Content,
		SavedAt: time.Now(),
	}
	if err := u.repo.PutSavedSection(ctx, input.SessionID, query, name, section); err != nil {
		return goerr.Wrap(err, "failed to save research section")
	}

	logging.From(ctx).Info("research section saved",
		"session_id", input.SessionID,
		"query", query,
		"section", name,
	)
	return nil
}

// List returns a session's saved research, oldest first.
func (u *UseCase) List(ctx context.Context, id model.SessionID) ([]*model.SavedResearch, error) {
	return u.repo.ListSavedResearch(ctx, id)
}

// ListAll returns saved research across all sessions, oldest first.
func (u *UseCase) ListAll(ctx context.Context) ([]*model.SavedResearch, error) {
	return u.repo.ListAllSavedResearch(ctx)
}

// Delete removes one saved research record with all its sections.
func (u *UseCase) Delete(ctx context.Context, id model.SessionID, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return goerr.New("query is required", goerr.T(model.TagValidation))
	}
	if err := u.repo.DeleteSavedResearch(ctx, id, query); err != nil {
		return err
	}

	logging.From(ctx).Info("saved research deleted", "session_id", id, "query", query)
	return nil
}
