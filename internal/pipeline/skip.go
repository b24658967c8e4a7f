package pipeline

import (
	"errors"

	"archivist/internal/catalog"
)

// ErrSkip marks an item that completed without doing the stage's work, such
// as a PDF already on disk or an object already present in the mirror.
var ErrSkip = errors.New("skipped")

// SkipError carries the result to persist for a skipped item.
type SkipError struct {
	Result catalog.Result
	Reason string
	// Remote is set when deciding to skip took a call to an upstream
	// service, so the rate delay still applies to the next item.
	Remote bool
}

func (e *SkipError) Error() string {
	if e.Reason == "" {
		return ErrSkip.Error()
	}
	return ErrSkip.Error() + ": " + e.Reason
}

func (e *SkipError) Is(target error) bool { return target == ErrSkip }

// Skip returns an error that the executor records as a skipped success.
func Skip(result catalog.Result, reason string) error {
	return &SkipError{Result: result, Reason: reason}
}

// SkipRemote is Skip for handlers that asked an upstream service before
// skipping.
func SkipRemote(result catalog.Result, reason string) error {
	return &SkipError{Result: result, Reason: reason, Remote: true}
}
