package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrUserNotFound is returned when the acting user has no profile.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when the actor does not own the resource.
	ErrForbidden = errors.New("action forbidden")
	// ErrAlreadyFavourite is returned when the activity is already in the user's favourites.
	ErrAlreadyFavourite = errors.New("activity already in favourites")
	// ErrUnauthenticated is returned when an operation is attempted without an actor.
	ErrUnauthenticated = errors.New("authentication required")
)

// PersistenceError reports a failed store operation.
// Partial is set when an earlier write of the same operation was already applied.
type PersistenceError struct {
	Op      string
	Partial bool
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Partial {
		return fmt.Sprintf("persistence %s (partially applied): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError collects field problems for a payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, problem string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = problem
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// wrapPersistence leaves domain errors untouched and wraps everything else.
func wrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *PersistenceError
	switch {
	case errors.As(err, &perr),
		errors.Is(err, ErrActivityNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAlreadyFavourite),
		errors.Is(err, ErrForbidden):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
