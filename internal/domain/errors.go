package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedLanguage rejects a page unit for which neither a wiki
	// URL nor an explicit or default language was provided. Guessing a
	// language would fetch data from the wrong wiki.
	ErrUnresolvedLanguage = errors.New("page language could not be resolved")

	// ErrSubmissionInvalid rejects a malformed analysis request outright.
	ErrSubmissionInvalid = errors.New("invalid task submission")

	// ErrTaskNotFound is returned when polling an unknown task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrPageMissing marks a page that does not exist on the target wiki.
	ErrPageMissing = errors.New("page does not exist")
)

// SourceError reports a single upstream call that exhausted its retries.
// It is scoped to that call; sibling fetches and pages continue.
type SourceError struct {
	Surface string // "mediawiki", "pageviews", "revertrisk"
	Op      string
	// Status carries the final HTTP status for non-transient upstream
	// rejections, zero otherwise.
	Status int
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable for %s: %v", e.Surface, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
