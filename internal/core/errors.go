package core

import (
	"errors"
	"fmt"
)

// ErrNoHandlerMatched is returned when no handler predicate accepts the request
var ErrNoHandlerMatched = errors.New("no request handler matched")

// ErrAlreadyLoaded is returned when a cycle tries to load attributes twice
var ErrAlreadyLoaded = errors.New("attributes already loaded for this cycle")

// RetrievalError reports a failed attribute load. It aborts the cycle so a
// store outage is never mistaken for a new user.
type RetrievalError struct {
	Key string
	Err error
}

func (e *RetrievalError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("failed to retrieve attributes: %v", e.Err)
	}
	return fmt.Sprintf("failed to retrieve attributes for %q: %v", e.Key, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// PersistenceError reports a failed attribute save. The response it belongs
// to has already been produced and is delivered regardless.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("failed to persist attributes: %v", e.Err)
	}
	return fmt.Sprintf("failed to persist attributes for %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError reports a skill that cannot be composed
type ConfigurationError struct {
	Component string
	Reason    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid %s configuration: %s", e.Component, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// isFatal reports errors that must reach the caller instead of an exception handler
func isFatal(err error) bool {
	var retrieval *RetrievalError
	var configuration *ConfigurationError
	return errors.As(err, &retrieval) || errors.As(err, &configuration)
}
