// Package model defines the domain model.
package model

import (
	"errors"
	"fmt"
)

// ErrUnparseableFeed marks a fetched body that no supported feed format
// could decode. Callers use it to tell parse failures apart from
// transport failures.
var ErrUnparseableFeed = errors.New("unparseable feed body")

// APIError is the unified error format returned by the HTTP surface.
// Category tells operators which class of problem they are looking at.
type APIError struct {
	Code     string // stable error code
	Message  string // human-readable description
	Category string // one of: auth, validation, upstream, enrichment, system
	Action   string // suggested operator action
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Defined error codes.
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeSignalNotFound  = "SIGNAL_NOT_FOUND"
	ErrCodeInvalidFilter   = "INVALID_FILTER"
	ErrCodeRunInProgress   = "RUN_IN_PROGRESS"
	ErrCodeNoActiveSources = "NO_ACTIVE_SOURCES"
	ErrCodeInternal        = "INTERNAL"
)

// NewUnauthorizedError signals a missing or invalid scheduler token.
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "a valid scheduler token is required",
		Category: "auth",
		Action:   "set the X-Scheduler-Token header to the configured SCHEDULER_TOKEN value",
	}
}

// NewSignalNotFoundError signals an unknown signal ID.
func NewSignalNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSignalNotFound,
		Message:  fmt.Sprintf("signal not found: %s", id),
		Category: "validation",
		Action:   "check the signal ID",
	}
}

// NewInvalidFilterError signals a malformed list filter parameter.
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("invalid filter: %s", reason),
		Category: "validation",
		Action:   "check the query parameters",
	}
}

// NewRunInProgressError signals that an overlapping run holds the lease.
func NewRunInProgressError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeRunInProgress,
		Message:  fmt.Sprintf("a %s run is already in progress", kind),
		Category: "system",
		Action:   "wait for the current run to finish or for its lease to expire",
	}
}

// NewNoActiveSourcesError signals a total-configuration failure: the
// catalog has no active feed sources at all.
func NewNoActiveSourcesError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveSources,
		Message:  "no active feed sources are configured",
		Category: "system",
		Action:   "check the feed catalog file and the feed_sources table",
	}
}

// NewInternalError wraps an unexpected failure for the HTTP surface.
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "an internal error occurred",
		Category: "system",
		Action:   "check the server logs",
	}
}
