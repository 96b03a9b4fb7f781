package backend

import (
	"errors"
	"fmt"
)

// ErrAuthRequired is returned (wrapped) when a backend's stored credentials
// are missing or were rejected.
var ErrAuthRequired = errors.New("authentication required")

// Error is a failure inside one backend.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError wraps err as an *Error for the named backend, leaving errors that
// already are one untouched.
func AsError(name, op string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Backend: name, Op: op, Err: err}
}

// AuthError reports rejected credentials for a backend.
func AuthError(name, detail string) error {
	return &Error{Backend: name, Op: "auth", Err: fmt.Errorf("%w: %s", ErrAuthRequired, detail)}
}
