package model

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures so that callers can map them to exit codes
// or HTTP statuses without matching on message text.
var (
	TagNotFound           = goerr.NewTag("not_found")
	TagValidation         = goerr.NewTag("validation")
	TagBackendUnavailable = goerr.NewTag("backend_unavailable")
	TagSearchFailed       = goerr.NewTag("search_failed")
	TagChatFailed         = goerr.NewTag("chat_failed")
	TagSynthesisFailed    = goerr.NewTag("synthesis_failed")
)

var (
	ErrSessionNotFound       = goerr.New("session not found", goerr.T(TagNotFound))
	ErrSavedResearchNotFound = goerr.New("saved research not found", goerr.T(TagNotFound))
)
