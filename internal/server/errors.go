package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/evolearn/studyhub/internal/auth"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/service"
	"github.com/evolearn/studyhub/internal/share"
	"github.com/evolearn/studyhub/internal/storage"
	"github.com/evolearn/studyhub/internal/summary"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeResourceLocked  = "RESOURCE_LOCKED"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL"
)

// ValidationError rejects a request before anything is changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	Lock          *lockHolder `json:"lock,omitempty"`
	ExistingJobID uint        `json:"existing_job_id,omitempty"`
}

type lockHolder struct {
	ResourceType string    `json:"resource_type"`
	ResourceID   uint      `json:"resource_id"`
	LockedBy     uint      `json:"locked_by"`
	LockType     string    `json:"lock_type"`
	HolderName   string    `json:"holder_name,omitempty"`
	HolderEmail  string    `json:"holder_email,omitempty"`
	LockedAt     time.Time `json:"locked_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

var badRequest = []error{
	lock.ErrInvalidResource,
	lock.ErrInvalidLockType,
	permission.ErrInvalidLevel,
	summary.ErrInvalidAnalysisType,
	summary.ErrMissingFile,
	service.ErrInvalidName,
	service.ErrCycle,
	service.ErrTreeTooDeep,
	share.ErrCannotShareWithSelf,
	share.ErrInvalidRole,
	share.ErrNodeOutsideShare,
	storage.ErrInvalidPath,
	storage.ErrOutsideRoot,
}

var notFound = []error{
	gorm.ErrRecordNotFound,
	summary.ErrJobNotFound,
	summary.ErrDocumentNotFound,
	service.ErrDirectoryNotFound,
	service.ErrDocumentNotFound,
	share.ErrShareNotFound,
	share.ErrDirectoryNotFound,
	share.ErrUserNotFound,
	share.ErrNotMember,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorStatus maps an error returned by a service to the http status and
// body sent to the client.
func errorStatus(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var validation *ValidationError
	var locked *lock.LockedError
	var limited *summary.RateLimitedError
	switch {
	case errors.As(err, &validation), isAny(err, badRequest):
		body.Code = CodeInvalidRequest
		return http.StatusBadRequest, body
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrTokenExpired):
		body.Code = CodeUnauthenticated
		return http.StatusUnauthorized, body
	case errors.Is(err, permission.ErrPermissionDenied), errors.Is(err, summary.ErrForbidden), errors.Is(err, share.ErrNotOwner):
		body.Code = CodeForbidden
		return http.StatusForbidden, body
	case errors.As(err, &locked):
		body.Code = CodeResourceLocked
		if l := locked.Lock; l != nil {
			body.Lock = &lockHolder{
				ResourceType: string(l.ResourceType),
				ResourceID:   l.ResourceID,
				LockedBy:     l.LockedBy,
				LockType:     string(l.LockType),
				HolderName:   l.HolderName,
				HolderEmail:  l.HolderEmail,
				LockedAt:     l.LockedAt,
				ExpiresAt:    l.ExpiresAt,
			}
		}
		return http.StatusLocked, body
	case errors.Is(err, lock.ErrLocked):
		body.Code = CodeResourceLocked
		return http.StatusLocked, body
	case errors.As(err, &limited):
		body.Code = CodeTooManyRequests
		body.ExistingJobID = limited.ExistingJobID
		return http.StatusTooManyRequests, body
	case isAny(err, notFound):
		body.Code = CodeNotFound
		return http.StatusNotFound, body
	case errors.Is(err, share.ErrAlreadyMember), errors.Is(err, gorm.ErrDuplicatedKey):
		body.Code = CodeConflict
		return http.StatusConflict, body
	}

	body.Code = CodeInternal
	body.Error = http.StatusText(http.StatusInternalServerError)
	return http.StatusInternalServerError, body
}

// writeError aborts the request with the status and body errorStatus maps
// err to. Internal errors are logged with the request id and hidden.
func writeError(c *gin.Context, err error) {
	status, body := errorStatus(err)
	if status == http.StatusInternalServerError {
		logrus.WithField("request_id", requestID(c)).Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, body)
}
