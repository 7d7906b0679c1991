package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"campusres/internal/domain"
	"campusres/internal/ledger"
	"campusres/internal/service"
	"campusres/internal/worker"
)

var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// errorMessage maps a service error to an HTTP status and the text shown to
// the user. Unknown errors are reported as 500 without details.
func errorMessage(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, "the resource is already booked for that time"
	case errors.Is(err, ledger.ErrAlreadyDecided):
		return http.StatusConflict, "the reservation was already decided"
	case errors.Is(err, domain.ErrNameConflict):
		return http.StatusConflict, "a record with that name already exists"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, domain.ErrInUse):
		return http.StatusConflict, "record is still referenced and cannot be deleted"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, worker.ErrRateLimited):
		return http.StatusTooManyRequests, "too many assistant requests, try again later"
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable, "assistant is busy, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := errorMessage(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error().
			Err(err).
			Str("request_id", r.Header.Get(requestIDHeader)).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeError(w, code, msg)
}
