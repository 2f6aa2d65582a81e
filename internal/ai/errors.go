package ai

import "errors"

var (
	// ErrRateLimited is returned when every attempt ended in a quota or availability error.
	ErrRateLimited = errors.New("summarization rate limited")
	// ErrNoCredentials is returned when the credential pool is empty.
	ErrNoCredentials = errors.New("no api keys configured")
	// ErrEmptySummary is returned when no chunk produced any text.
	ErrEmptySummary = errors.New("summarization produced no text")
	// ErrProviderUnavailable is returned when a model needs a provider that is not configured.
	ErrProviderUnavailable = errors.New("summarization provider not configured")
)
