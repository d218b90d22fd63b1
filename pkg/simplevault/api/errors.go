package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// retryAfterSeconds is sent with 503 responses for transient failures.
const retryAfterSeconds = "5"

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps service errors to HTTP status codes. Transient errors are
// checked first because they may wrap a conflict sentinel.
func statusFor(err error) int {
	switch {
	case errors.Is(err, simplevault.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, simplevault.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, simplevault.ErrFileNotFound), errors.Is(err, simplevault.ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, simplevault.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, simplevault.ErrNameTaken), errors.Is(err, simplevault.ErrVersionNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and replies with the mapped status. Internal failures
// are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	switch {
	case status >= http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), msg, "err", err, "status", status)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", retryAfterSeconds)
			resp.Error = "temporarily unavailable, retry later"
		} else {
			resp.Error = http.StatusText(status)
		}
	default:
		slog.WarnContext(r.Context(), msg, "err", err, "status", status)
	}

	var ve *simplevault.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
		resp.Error = ve.Error()
	}
	if status == http.StatusNotFound {
		resp.Error = "not found"
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// badRequest replies 400 for malformed requests that never reach the service
func badRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.WarnContext(r.Context(), msg, "err", err)
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
