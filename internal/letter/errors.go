package letter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the root consultation cannot be loaded.
	ErrNotFound = errors.New("consultation not found")
	// ErrCancelled is returned when the caller cancels an aggregation. It is
	// always wrapped together with the context error.
	ErrCancelled = errors.New("letter aggregation cancelled")
)

// AggregationError is a fatal failure to load the root consultation for any
// reason other than it being absent.
type AggregationError struct {
	ConsultationID string
	Reason         string
	Err            error
}

func (e *AggregationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("aggregate letter for consultation %s: %s", e.ConsultationID, e.Reason)
	}
	return fmt.Sprintf("aggregate letter for consultation %s: %s: %v", e.ConsultationID, e.Reason, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// PartialDataError describes a sub-fetch that failed and was replaced by an
// empty list. It is logged, never returned to callers.
type PartialDataError struct {
	Source string
	Err    error
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial data unavailable from %s: %v", e.Source, e.Err)
}

func (e *PartialDataError) Unwrap() error { return e.Err }

// RenderError is a failure of the layout or output backend. The pipeline
// holds no state between requests, so the whole request may be retried.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render letter (%s): %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Retryable is always true for render failures.
func (e *RenderError) Retryable() bool { return true }
