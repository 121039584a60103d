package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// User-correctable, surfaced to the presentation layer as-is.
	ErrInvalidParticipant = fmt.Errorf("invalid participant pair")
	ErrMalformedKey       = fmt.Errorf("malformed conversation key")
	ErrEmptyMessage       = fmt.Errorf("message text is empty")

	ErrConversationNotFound = fmt.Errorf("conversation not found")

	// ErrStoreUnavailable is transient; callers retry with backoff.
	ErrStoreUnavailable = fmt.Errorf("store unavailable")

	// ErrSubscriptionOverflow disconnects a slow subscriber. It is never
	// retried; the client reconnects and receives a fresh snapshot.
	ErrSubscriptionOverflow = fmt.Errorf("subscription buffer overflow")

	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrEmailTaken         = fmt.Errorf("email already registered")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrProfileNotFound    = fmt.Errorf("profile not found")
)

// Is reports whether err matches target, re-exported so callers need a
// single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MapToStatus translates a domain error into the HTTP status returned by
// the presentation adapter. Transient storage errors are retried before
// they ever reach this function; if one does, the client sees 503.
func MapToStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidParticipant),
		errors.Is(err, ErrMalformedKey),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
