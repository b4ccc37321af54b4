package core

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable marks a data source that cannot be opened or queried.
// It is the only failure that aborts a whole run.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrNewItem marks a row whose target item cannot be named or placed.
var ErrNewItem = errors.New("new item error")

// SourceError describes why a source descriptor could not be resolved.
type SourceError struct {
	Query  string
	Reason string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Query, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Query)
}

// Unwrap lets errors.Is match both ErrSourceUnavailable and the cause.
func (e *SourceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSourceUnavailable, e.Err}
	}
	return []error{ErrSourceUnavailable}
}

// Unavailable builds a SourceError for query.
func Unavailable(query, reason string, err error) error {
	return &SourceError{Query: query, Reason: reason, Err: err}
}

// panicError converts a recovered value into an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
