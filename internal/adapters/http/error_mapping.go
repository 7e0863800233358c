package httpadapter

import (
	"net/http"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage never exposes internal detail: only PublicError messages of client errors pass through.
func errorMessage(err error, status int) string {
	if status < http.StatusInternalServerError {
		if msg, ok := domain.PublicMessage(err); ok {
			return msg
		}
	}
	switch status {
	case http.StatusBadRequest:
		return "Invalid request"
	case http.StatusUnauthorized:
		return "Not authenticated"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict:
		return "Request conflicts with the current state"
	case http.StatusTooManyRequests:
		return "Too many attempts. Please try again later."
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable"
	default:
		return "Internal server error"
	}
}
