// Package httpx writes the JSON answers of the console's script-facing
// endpoints.
package httpx

import (
	"errors"
	"net/http"

	"github.com/sentry-admin/console/internal/apiclient"
	"github.com/sentry-admin/console/internal/shared"
)

// Sentinel errors for the console's own validation.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrTooLarge   = errors.New("payload too large")
)

// RespondError maps console and backend errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, ErrTooLarge), errors.As(err, &tooLarge):
		Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, shared.ErrInvalidID):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, apiclient.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", apiclient.MsgForbidden)
	case errors.Is(err, apiclient.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", apiclient.MsgSessionExpired)
	case errors.Is(err, apiclient.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", apiclient.MsgNotFound)
	case errors.Is(err, apiclient.ErrRejected), errors.Is(err, apiclient.ErrBadRequest):
		Problem(w, http.StatusUnprocessableEntity, "Rejected", apiclient.UserMessage(err))
	case errors.Is(err, apiclient.ErrServer), errors.Is(err, apiclient.ErrTransport), errors.Is(err, apiclient.ErrDecode):
		Problem(w, http.StatusBadGateway, "Backend Unavailable", apiclient.UserMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
