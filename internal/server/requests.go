package server

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/evolearn/studyhub/internal/auth"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 64 << 20
	maxMemory      = 32 << 20
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonName)
	}
}

// jsonName reports validation failures under the json field name.
func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// request checks the rules binding tags cannot express and fills defaults.
type request interface {
	Validate() error
}

// bind reads a JSON body into req, checks its binding tags and validates it.
func bind(c *gin.Context, req request) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(req); err != nil {
		return bindError(err)
	}
	return req.Validate()
}

func bindError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		if fe.Param() != "" {
			return invalid(fe.Field(), "failed %s=%s", fe.Tag(), fe.Param())
		}
		return invalid(fe.Field(), "failed %s", fe.Tag())
	}
	if errors.Is(err, io.EOF) {
		return &ValidationError{Message: "request body is empty"}
	}
	return &ValidationError{Message: "malformed json: " + err.Error()}
}

func identity(c *gin.Context) (*auth.Identity, error) {
	id, ok := auth.FromContext(c.Request.Context())
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return id, nil
}

func pathID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, invalid(name, "%q is not a valid id", raw)
	}
	return uint(id), nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid(name, "%q is not a non negative integer", raw)
	}
	return n, nil
}

type acquireLockRequest struct {
	ResourceType model.ResourceType `json:"resource_type" binding:"required,oneof=directory document"`
	ResourceID   uint               `json:"resource_id" binding:"required"`
	LockType     model.LockType     `json:"lock_type" binding:"required,oneof=editing moving deleting summarizing"`
	// TTLSeconds defaults to the configured lock ttl.
	TTLSeconds int `json:"ttl_seconds" binding:"gte=0,lte=3600"`
}

func (r *acquireLockRequest) Validate() error {
	return nil
}

func (r *acquireLockRequest) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

func resourceFromPath(c *gin.Context) (model.ResourceType, uint, error) {
	rt := model.ResourceType(c.Param("resource_type"))
	if !rt.Valid() {
		return "", 0, invalid("resource_type", "must be directory or document")
	}
	id, err := pathID(c, "resource_id")
	if err != nil {
		return "", 0, err
	}
	return rt, id, nil
}

func levelFromQuery(c *gin.Context) (permission.Level, error) {
	level := permission.Level(c.DefaultQuery("level", string(permission.View)))
	if !level.Valid() {
		return "", invalid("level", "must be view or edit")
	}
	return level, nil
}

type createDirectoryRequest struct {
	ParentID *uint  `json:"parent_id" binding:"omitnil,min=1"`
	Name     string `json:"name" binding:"required,max=255"`
}

func (r *createDirectoryRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name", "is required")
	}
	return nil
}

// updateDirectoryRequest renames and/or moves a directory.
type updateDirectoryRequest struct {
	Name     *string `json:"name" binding:"omitnil,max=255"`
	ParentID *uint   `json:"parent_id" binding:"omitnil,min=1"`
}

func (r *updateDirectoryRequest) Validate() error {
	if r.Name == nil && r.ParentID == nil {
		return invalid("", "name or parent_id is required")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return invalid("name", "must not be empty")
	}
	return nil
}

type updateDocumentRequest struct {
	Name        *string `json:"name" binding:"omitnil,max=255"`
	DirectoryID *uint   `json:"directory_id" binding:"omitnil,min=1"`
}

func (r *updateDocumentRequest) Validate() error {
	if r.Name == nil && r.DirectoryID == nil {
		return invalid("", "name or directory_id is required")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return invalid("name", "must not be empty")
	}
	return nil
}

// submitSummaryRequest names either a document or a file below the user's
// storage root.
type submitSummaryRequest struct {
	DocumentID   *uint              `json:"document_id" binding:"omitnil,min=1"`
	FileRelPath  string             `json:"file_rel_path"`
	AnalysisType model.AnalysisType `json:"analysis_type" binding:"omitempty,oneof=summary_fast summary_detailed"`
	Model        string             `json:"model" binding:"max=100"`
}

func (r *submitSummaryRequest) Validate() error {
	hasFile := strings.TrimSpace(r.FileRelPath) != ""
	if (r.DocumentID == nil) == !hasFile {
		return invalid("", "exactly one of document_id or file_rel_path is required")
	}
	if r.AnalysisType == "" {
		r.AnalysisType = model.AnalysisFast
	}
	return nil
}

type shareNode struct {
	DirectoryID    uint `json:"directory_id" binding:"required"`
	IncludeSubtree bool `json:"include_subtree"`
}

type createShareRequest struct {
	RootDirectoryID uint        `json:"root_directory_id" binding:"required"`
	Name            string      `json:"name" binding:"required,max=255"`
	Description     string      `json:"description" binding:"max=2000"`
	Nodes           []shareNode `json:"nodes" binding:"dive"`
}

func (r *createShareRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name", "is required")
	}
	return nil
}

type addShareUserRequest struct {
	UserID uint       `json:"user_id"`
	Email  string     `json:"email" binding:"omitempty,email"`
	Role   model.Role `json:"role" binding:"omitempty,oneof=viewer editor"`
}

func (r *addShareUserRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.UserID == 0 && r.Email == "" {
		return invalid("", "user_id or email is required")
	}
	if r.Role == "" {
		r.Role = model.RoleViewer
	}
	return nil
}

type updateShareUserRequest struct {
	Role model.Role `json:"role" binding:"required,oneof=viewer editor"`
}

func (r *updateShareUserRequest) Validate() error {
	return nil
}
