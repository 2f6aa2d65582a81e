package permission

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the user lacks the required permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidLevel is returned for a permission level other than view or edit.
	ErrInvalidLevel = errors.New("invalid permission level")
)

// DeniedError carries what was asked for so the caller can explain the refusal.
type DeniedError struct {
	UserID       uint
	ResourceType string
	ResourceID   uint
	Required     Level
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("user %d lacks %s permission on %s %d", e.UserID, e.Required, e.ResourceType, e.ResourceID)
}

func (e *DeniedError) Unwrap() error {
	return ErrPermissionDenied
}
