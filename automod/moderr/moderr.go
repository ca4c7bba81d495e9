// Error conditions shared by the moderation packages.
//
// Callers should match with errors.Is; the concrete errors returned carry additional context wrapped around one of these sentinels.
package moderr

import (
	"errors"
	"fmt"
)

var (
	// missing or empty reason, non-positive duration, unknown action kind, bad config
	ErrInvalidArgument = errors.New("invalid argument")
	// the requested transition is not permitted from the current state
	ErrInvalidTransition = errors.New("invalid transition")
	// content or account not known to the store
	ErrNotFound = errors.New("not found")
	// content or account already exists
	ErrConflict = errors.New("conflict")
)

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Short label for the sentinel an error wraps, for metrics and logs. Errors which wrap none of them are "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
