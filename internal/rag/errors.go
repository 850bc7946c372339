package rag

import (
	"errors"
	"fmt"
)

// ErrEmptyQuestion is returned when a query is submitted without text.
var ErrEmptyQuestion = errors.New("question must not be empty")

// ConfigurationError reports a missing required credential at agent
// construction. It is surfaced before any retrieval work happens.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not set in environment variables", e.Missing)
}

// QueryError wraps a failure of a blocking query. A query never returns a
// partial answer alongside one of these.
type QueryError struct {
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to query agent: %v", e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// StreamError reports a provider failure after streaming has started. It is
// delivered as the terminal fragment so consumers never mistake a premature
// end of stream for success.
type StreamError struct {
	Cause error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("failed to stream agent response: %v", e.Cause)
}

func (e *StreamError) Unwrap() error { return e.Cause }
