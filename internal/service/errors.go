package service

import "errors"

var (
	// ErrDirectoryNotFound is returned when a directory does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrDocumentNotFound is returned when a document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidName is returned for empty names or names with path separators.
	ErrInvalidName = errors.New("invalid name")
	// ErrCycle is returned when a directory would be moved below itself.
	ErrCycle = errors.New("cannot move a directory into itself or one of its descendants")
	// ErrTreeTooDeep is returned when a directory tree exceeds the depth the service walks.
	ErrTreeTooDeep = errors.New("directory tree too deep")
)
