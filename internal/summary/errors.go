package summary

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job does not exist or belongs to someone else.
	ErrJobNotFound = errors.New("summary job not found")
	// ErrForbidden is returned when a user asks for the details of another user's job.
	ErrForbidden = errors.New("summary job belongs to another user")
	// ErrTooManyRequests is returned when a user submits again within the dedup window.
	ErrTooManyRequests = errors.New("a summary job was submitted moments ago")
	// ErrDocumentNotFound is returned when a submission targets a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidAnalysisType is returned for an analysis type other than summary_fast or summary_detailed.
	ErrInvalidAnalysisType = errors.New("invalid analysis type")
	// ErrMissingFile is returned when a submission names no file.
	ErrMissingFile = errors.New("missing file path")
)

// RateLimitedError points the client at the job it submitted moments ago.
type RateLimitedError struct {
	ExistingJobID uint
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, existing job %d", ErrTooManyRequests, e.ExistingJobID)
}

func (e *RateLimitedError) Unwrap() error {
	return ErrTooManyRequests
}
