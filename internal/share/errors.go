package share

import "errors"

var (
	ErrShareNotFound       = errors.New("share not found")
	ErrDirectoryNotFound   = errors.New("directory not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrNotOwner            = errors.New("only the share owner can do this")
	ErrCannotShareWithSelf = errors.New("cannot share with yourself")
	ErrAlreadyMember       = errors.New("user already has this role")
	ErrNotMember           = errors.New("user is not a member of the share")
	ErrInvalidRole         = errors.New("invalid role")
	ErrNodeOutsideShare    = errors.New("directory is not inside the shared directory")
)
