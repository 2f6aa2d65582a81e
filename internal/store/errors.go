package store

import "errors"

var (
	// ErrUnknownResourceType is returned when a lock targets neither a directory nor a document.
	ErrUnknownResourceType = errors.New("unknown resource type")
)
