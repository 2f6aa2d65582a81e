package lock

import (
	"errors"
	"fmt"
	"time"

	"github.com/evolearn/studyhub/internal/model"
)

var (
	// ErrLocked is returned when a resource is locked by another user.
	ErrLocked = errors.New("resource locked")
	// ErrInvalidResource is returned for an unknown resource type or a zero resource id.
	ErrInvalidResource = errors.New("invalid lock resource")
	// ErrInvalidLockType is returned for an unknown lock type.
	ErrInvalidLockType = errors.New("invalid lock type")
)

// LockedError names the user currently holding a resource.
type LockedError struct {
	Lock *model.Lock
}

func (e *LockedError) Error() string {
	if e.Lock == nil {
		return ErrLocked.Error()
	}
	holder := e.Lock.HolderName
	if holder == "" {
		holder = fmt.Sprintf("user %d", e.Lock.LockedBy)
	}
	return fmt.Sprintf("%s %d is locked by %s (%s) since %s", e.Lock.ResourceType, e.Lock.ResourceID, holder,
		e.Lock.LockType, e.Lock.LockedAt.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error {
	return ErrLocked
}
