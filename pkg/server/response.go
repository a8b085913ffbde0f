package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	logger := logging.From(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", code, "error", err)
	} else {
		logger.Warn("request rejected", "code", code, "error", err)
	}
	respondJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// classify maps the error taxonomy onto HTTP status codes. Untagged
// errors are internal by definition.
func classify(err error) (int, string) {
	switch {
	case goerr.HasTag(err, model.TagValidation):
		return http.StatusBadRequest, "validation"
	case goerr.HasTag(err, model.TagNotFound):
		return http.StatusNotFound, "not_found"
	case goerr.HasTag(err, model.TagBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case goerr.HasTag(err, model.TagSearchFailed):
		return http.StatusBadGateway, "search_failed"
	case goerr.HasTag(err, model.TagChatFailed):
		return http.StatusBadGateway, "chat_failed"
	case goerr.HasTag(err, model.TagSynthesisFailed):
		return http.StatusBadGateway, "synthesis_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return decodeErr(err)
	}
	return nil
}

func decodeErr(err error) error {
	return goerr.Wrap(err, "invalid request body", goerr.T(model.TagValidation))
}

// orEmpty keeps list payloads as [] instead of null in JSON.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
