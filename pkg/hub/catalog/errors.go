package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned when an anonymous caller tries to submit.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound is returned when a resource id does not exist.
	ErrNotFound = errors.New("resource not found")

	errNoID = errors.New("store returned no id")
)

// ValidationError reports a missing or blank field. It is raised before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Field + ": " + e.Message
	}
	return e.Field + " is required"
}

// LookupError reports that a type or category name could not be resolved to an id.
type LookupError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("resolve %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Phase names the step of a resource write that failed.
type Phase string

const (
	PhaseLookup     Phase = "lookup"
	PhaseScalar     Phase = "scalar"
	PhaseJoinDelete Phase = "join-delete"
	PhaseJoinInsert Phase = "join-insert"
)

// WriteError reports a failed resource write and the phase it failed in.
// The write runs in a transaction, so nothing from the failed attempt is kept.
type WriteError struct {
	Phase Phase
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write resource (%s): %v", e.Phase, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
