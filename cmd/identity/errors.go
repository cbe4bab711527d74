package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("identity: not found")

	// ErrInvalidInput is returned for empty or malformed lookup arguments.
	ErrInvalidInput = errors.New("identity: invalid input")
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Kind MUST be one of the sentinel kinds when applicable.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
