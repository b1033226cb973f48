package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/fusion-gateway/internal/apperr"
	"github.com/kjstillabower/fusion-gateway/internal/auth"
	"github.com/kjstillabower/fusion-gateway/internal/client"
	"github.com/kjstillabower/fusion-gateway/internal/history"
	"github.com/kjstillabower/fusion-gateway/internal/observability"
	"github.com/kjstillabower/fusion-gateway/internal/service"
)

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeAppError classifies err and writes it. Server-side failures are
// logged with the underlying cause, which never reaches the client.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err, classifyDomainError)
	logger := observability.LoggerFromContext(r.Context())
	if ae.Status() >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("kind", ae.Kind.String()),
			zap.String("code", ae.Code),
			zap.Error(err),
		)
	} else {
		logger.Debug("request rejected", zap.String("code", ae.Code), zap.Error(err))
	}
	writeError(w, ae.Status(), ae.Code, ae.Message)
}

// classifyDomainError maps package sentinel errors onto the HTTP taxonomy.
func classifyDomainError(err error) *apperr.Error {
	switch {
	case errors.Is(err, service.ErrNoCharacters):
		return apperr.New(apperr.KindNotFound, "NOT_FOUND", "No characters available to fuse", err)
	case errors.Is(err, client.ErrUpstreamUnreachable):
		return apperr.New(apperr.KindUpstreamUnreachable, "UPSTREAM_UNAVAILABLE", "Character service is unreachable", err)
	case errors.Is(err, client.ErrUpstreamUnavailable):
		return apperr.New(apperr.KindUpstream, "UPSTREAM_ERROR", "Character service returned an invalid response", err)
	case errors.Is(err, history.ErrInvalidCursor):
		return apperr.New(apperr.KindValidation, "INVALID_CURSOR", "The pagination cursor is invalid", err)
	case errors.Is(err, history.ErrInvalidKind):
		return apperr.New(apperr.KindValidation, "INVALID_KIND", "kind must be fusion or custom", err)
	case errors.Is(err, history.ErrStorageUnavailable):
		return apperr.New(apperr.KindStorage, "STORAGE_ERROR", "History storage is unavailable", err)
	}
	if code, msg := auth.Describe(err); code != "" {
		return apperr.New(apperr.KindAuth, code, msg, err)
	}
	return nil
}
