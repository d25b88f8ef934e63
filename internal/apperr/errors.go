package apperr

import "errors"

// Sentinel errors for the five terminal outcomes surfaced to callers, plus
// Unavailable for transient storage trouble. Services wrap these with %w and
// the HTTP layer maps them to status codes in one place.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate submission")
	ErrUnavailable     = errors.New("temporarily unavailable")
)

// IsTerminal reports whether err is one of the non-retryable outcomes.
// Retrying without changing the request cannot succeed for these.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate)
}
