// Package handlers provides HTTP handlers for the PDF viewer API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/viewer"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps an error from the viewer packages to a status code.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeError(w, status, http.StatusText(status), err.Error())
}

func statusFor(err error) int {
	switch {
	case invalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, viewer.ErrViewerNotFound),
		errors.Is(err, domain.ErrNoSession),
		errors.Is(err, domain.ErrNotFound),
		domain.IsReason(err, domain.ReasonOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, viewer.ErrTooManyViewers):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStaleGeneration),
		errors.Is(err, domain.ErrSuperseded),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrObservationUnavailable),
		errors.Is(err, viewer.ErrNotRendered):
		return http.StatusConflict
	case errors.Is(err, domain.ErrClosed):
		return http.StatusGone
	case domain.IsReason(err, domain.ReasonUndecodable):
		return http.StatusUnprocessableEntity
	case domain.IsReason(err, domain.ReasonUnreachable):
		return http.StatusBadGateway
	case domain.IsType(err, domain.ErrorTypeValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// invalidInput reports whether any DomainError in err's chain is a validation
// error, including one wrapped inside an open failure.
func invalidInput(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if de, ok := err.(*domain.DomainError); ok && de.Type == domain.ErrorTypeValidation {
			return true
		}
	}
	return false
}
