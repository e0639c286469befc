// Package apperr defines the error taxonomy shared by the indexer, watcher and graph layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidRoot = errors.New("invalid root")
	ErrClosed      = errors.New("closed")
	ErrOutsideRoot = errors.New("path outside vault root")
)

// SkipReason explains why a file was left out of the graph.
type SkipReason string

const (
	SkipOversized SkipReason = "oversized"
	SkipEmpty     SkipReason = "empty"
	SkipHidden    SkipReason = "hidden"
	SkipIgnored   SkipReason = "ignored"
	SkipNotNote   SkipReason = "not_note"
	SkipMissing   SkipReason = "missing"
)

// SkipError marks an expected, non-fatal exclusion. Skips are counted, not logged as errors.
type SkipError struct {
	Path   string
	Reason SkipReason
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip %s: %s", e.Path, e.Reason)
}

// Skip returns a *SkipError for path.
func Skip(path string, reason SkipReason) error {
	return &SkipError{Path: path, Reason: reason}
}

// IsSkip reports whether err (or anything it wraps) is a *SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// SkipReasonOf returns the reason carried by err, or "" when err is not a skip.
func SkipReasonOf(err error) SkipReason {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}
