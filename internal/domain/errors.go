package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass buckets a backend failure for the chain executor. Every class
// advances the chain to the next backend; the distinction matters for
// logging and for credential bookkeeping.
type ErrorClass string

const (
	ClassTransient   ErrorClass = "transient"
	ClassRateLimited ErrorClass = "rate_limited"
	ClassFatal       ErrorClass = "fatal"
)

// ErrNoMatch is returned by the recognition flow when the sample could not
// be identified. A no-match is an expected outcome, not a pipeline defect.
var ErrNoMatch = errors.New("no track match")

// ResolutionError reports a source reference whose platform could not be
// determined. References on a known platform never produce this; they fall
// back to a hashed canonical id instead.
type ResolutionError struct {
	Reference string
	Reason    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Reference, e.Reason)
}

// BackendFailure is one backend's classified failure within a chain run.
type BackendFailure struct {
	Backend string
	Class   ErrorClass
	Err     error
}

func (f BackendFailure) String() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Backend, f.Class)
	}
	return fmt.Sprintf("%s: %s: %v", f.Backend, f.Class, f.Err)
}

// AllBackendsFailedError reports that every backend in a platform's chain
// failed for one request. Failures keeps the per-backend reasons in chain
// order for diagnostics.
type AllBackendsFailedError struct {
	Ref      MediaRef
	Failures []BackendFailure
}

func (e *AllBackendsFailedError) Error() string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = f.String()
	}
	return fmt.Sprintf("all backends failed for %s: [%s]", e.Ref.Key(), strings.Join(reasons, "; "))
}

// ExtractionError reports that audio extraction produced no valid output
// after every strategy.
type ExtractionError struct {
	Source  string
	Tried   int
	LastErr error
}

func (e *ExtractionError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("extracting audio from %s: no strategy produced valid output (%d tried)", e.Source, e.Tried)
	}
	return fmt.Sprintf("extracting audio from %s: no strategy produced valid output (%d tried): %v", e.Source, e.Tried, e.LastErr)
}

func (e *ExtractionError) Unwrap() error { return e.LastErr }

// UploadError reports that the durable blob store rejected an artifact.
// A failed upload never writes a cache entry.
type UploadError struct {
	Ref MediaRef
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s: %v", e.Ref.Key(), e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Substring markers used by ClassifyText. Platform error strings are not
// stable APIs, so matching stays deliberately loose.
var (
	rateLimitMarkers = []string{
		"sign in to confirm",
		"bot",
		"rate limit",
		"too many requests",
		"quota",
		"429",
		"403",
	}
	transientMarkers = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"temporar",
		"unavailable",
		"unexpected eof",
		"network",
		"5xx",
	}
)

// ClassifyText buckets an error message by substring: sign-in/bot-detection
// and quota phrasing mean rate-limited, network phrasing transient,
// everything else fatal.
func ClassifyText(msg string) ErrorClass {
	lower := strings.ToLower(msg)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return ClassRateLimited
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return ClassTransient
		}
	}
	return ClassFatal
}

// ClassifyError applies ClassifyText to an error, treating context
// cancellation and deadlines as transient.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassifyText(err.Error())
}
