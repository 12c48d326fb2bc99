package core

import (
	"errors"
	"fmt"
)

// ErrConflict means the command is invalid given the current server-side
// state (already logged today, invite no longer pending). Not retryable;
// the message is safe to show to the user.
var ErrConflict = errors.New("conflict")

// ErrNotFound means the referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ErrBusy means an identical command is already in flight. The caller
// should drop the request, not queue it.
var ErrBusy = errors.New("operation already in progress")

// Conflictf wraps ErrConflict with a user-facing reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }
