package permission

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Level string

const (
	View Level = "view"
	Edit Level = "edit"
)

func (l Level) Valid() bool {
	return l == View || l == Edit
}

// MaxDepth bounds every walk up a directory's parent chain.
const MaxDepth = 50

// Resolver computes permissions from ownership and the share graph on every
// call. Nothing is cached, so role and tree changes apply immediately.
type Resolver struct {
	store store.Store
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// HasPermission reports whether the user may view or edit the directory.
func (r *Resolver) HasPermission(ctx context.Context, userID, directoryID uint, required Level) (bool, error) {
	if !required.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidLevel, required)
	}

	allowed, err := r.hasPermission(ctx, userID, directoryID, required)
	if err != nil {
		return false, err
	}
	if !allowed {
		logDenied(userID, "directory", directoryID, required)
	}

	return allowed, nil
}

func (r *Resolver) hasPermission(ctx context.Context, userID, directoryID uint, required Level) (bool, error) {
	dir, err := r.store.GetDirectory(ctx, directoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// local directories are never shared
	if !dir.CloudManaged || dir.OwnerID == userID {
		return dir.OwnerID == userID, nil
	}

	grants, err := r.store.ListUserGrants(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(grants) == 0 {
		return false, nil
	}

	var ancestors mapset.Set[uint]
	for _, grant := range grants {
		if grant.DirectoryID == dir.ID {
			if roleAllows(grant.Role, required) {
				return true, nil
			}
			continue
		}

		if !grant.IncludeSubtree {
			continue
		}

		if ancestors == nil {
			ancestors, err = r.Ancestors(ctx, dir)
			if err != nil {
				return false, err
			}
		}

		if ancestors.Contains(grant.DirectoryID) && roleAllows(grant.Role, required) {
			return true, nil
		}
	}

	return false, nil
}

// Ancestors collects the ids above dir, stopping after MaxDepth hops, at the
// root, or when the chain loops.
func (r *Resolver) Ancestors(ctx context.Context, dir *model.Directory) (mapset.Set[uint], error) {
	seen := mapset.NewThreadUnsafeSet[uint]()
	parentID := dir.ParentID

	for hops := 0; parentID != nil && hops < MaxDepth; hops++ {
		if *parentID == dir.ID || seen.Contains(*parentID) {
			logrus.Warnf("directory %d has a cyclic parent chain at %d", dir.ID, *parentID)
			break
		}
		seen.Add(*parentID)

		parent, err := r.store.GetDirectory(ctx, *parentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		parentID = parent.ParentID
	}

	return seen, nil
}

// CanEditDocument reports whether the user owns the document or may edit the
// directory holding it. Documents outside any directory are owner only.
func (r *Resolver) CanEditDocument(ctx context.Context, userID, documentID uint) (bool, error) {
	doc, err := r.store.GetDocument(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logDenied(userID, "document", documentID, Edit)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if doc.OwnerID == userID {
		return true, nil
	}

	if doc.DirectoryID == nil {
		logDenied(userID, "document", documentID, Edit)
		return false, nil
	}

	return r.HasPermission(ctx, userID, *doc.DirectoryID, Edit)
}

// CanAccessShare reports whether the user owns the share or is one of its members.
func (r *Resolver) CanAccessShare(ctx context.Context, userID, shareID uint) (bool, error) {
	share, err := r.store.GetShare(ctx, shareID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if share.OwnerID == userID {
		return true, nil
	}

	_, err = r.store.GetShareUser(ctx, shareID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logDenied(userID, "share", shareID, View)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// RequireDirectory fails with a *DeniedError unless HasPermission passes.
func (r *Resolver) RequireDirectory(ctx context.Context, userID, directoryID uint, required Level) error {
	ok, err := r.HasPermission(ctx, userID, directoryID, required)
	if err != nil {
		return err
	}
	if !ok {
		return &DeniedError{UserID: userID, ResourceType: "directory", ResourceID: directoryID, Required: required}
	}
	return nil
}

// RequireDocumentEdit fails with a *DeniedError unless CanEditDocument passes.
func (r *Resolver) RequireDocumentEdit(ctx context.Context, userID, documentID uint) error {
	ok, err := r.CanEditDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if !ok {
		return &DeniedError{UserID: userID, ResourceType: "document", ResourceID: documentID, Required: Edit}
	}
	return nil
}

// RequireShare fails with a *DeniedError unless CanAccessShare passes.
func (r *Resolver) RequireShare(ctx context.Context, userID, shareID uint) error {
	ok, err := r.CanAccessShare(ctx, userID, shareID)
	if err != nil {
		return err
	}
	if !ok {
		return &DeniedError{UserID: userID, ResourceType: "share", ResourceID: shareID, Required: View}
	}
	return nil
}

func roleAllows(role model.Role, required Level) bool {
	switch required {
	case View:
		return role == model.RoleViewer || role == model.RoleEditor
	case Edit:
		return role == model.RoleEditor
	}
	return false
}

func logDenied(userID uint, resourceType string, resourceID uint, required Level) {
	logrus.WithFields(logrus.Fields{
		"user_id":       userID,
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"required":      required,
	}).Warn("permission denied")
}
