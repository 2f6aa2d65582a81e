package share

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/events"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Service struct {
	store  store.Store
	perms  *permission.Resolver
	events *events.Log
	clock  clock.Clock
}

func NewService(s store.Store, perms *permission.Resolver, log *events.Log, clk clock.Clock) *Service {
	return &Service{store: s, perms: perms, events: log, clock: clk}
}

type Node struct {
	DirectoryID    uint
	IncludeSubtree bool
}

type CreateRequest struct {
	OwnerID         uint
	RootDirectoryID uint
	Name            string
	Description     string
	// Nodes defaults to the root directory with its subtree.
	Nodes []Node
}

// Create shares a directory owned by the caller. Shared directories become
// cloud managed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Share, error) {
	root, err := s.ownedDirectory(ctx, req.OwnerID, req.RootDirectoryID)
	if err != nil {
		return nil, err
	}

	nodes := req.Nodes
	if len(nodes) == 0 {
		nodes = []Node{{DirectoryID: root.ID, IncludeSubtree: true}}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = root.Name
	}

	share := &model.Share{
		RootDirectoryID: root.ID,
		OwnerID:         req.OwnerID,
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
	}

	created := 0
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		now := s.clock.Now()
		share.CreatedAt = now
		share.UpdatedAt = now
		if err := tx.CreateShare(ctx, share); err != nil {
			return err
		}

		seen := mapset.NewThreadUnsafeSet[uint]()
		for _, node := range nodes {
			if !seen.Add(node.DirectoryID) {
				continue
			}
			dir, err := s.nodeDirectory(ctx, tx, root, req.OwnerID, node.DirectoryID)
			if err != nil {
				return err
			}
			if !dir.CloudManaged {
				dir.CloudManaged = true
				dir.UpdatedAt = now
				if err = tx.UpdateDirectory(ctx, dir); err != nil {
					return err
				}
			}
			err = tx.CreateShareNode(ctx, &model.ShareNode{
				ShareID:        share.ID,
				DirectoryID:    dir.ID,
				IncludeSubtree: node.IncludeSubtree,
				CreatedAt:      now,
			})
			if err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": req.OwnerID, "share_id": share.ID}).Infof("directory %d shared", root.ID)
	s.events.Record(ctx, events.Entry{
		ShareIDs:    []uint{share.ID},
		DirectoryID: &root.ID,
		UserID:      req.OwnerID,
		Type:        model.EventShareCreated,
		Details:     map[string]any{"name": share.Name, "nodes": created},
	})

	return share, nil
}

func (s *Service) ownedDirectory(ctx context.Context, ownerID, directoryID uint) (*model.Directory, error) {
	dir, err := s.store.GetDirectory(ctx, directoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDirectoryNotFound
	}
	if err != nil {
		return nil, err
	}
	if dir.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return dir, nil
}

// nodeDirectory loads a node's directory and checks it is the root or below it.
func (s *Service) nodeDirectory(ctx context.Context, tx store.Store, root *model.Directory, ownerID, directoryID uint) (*model.Directory, error) {
	if directoryID == root.ID {
		return tx.GetDirectory(ctx, root.ID)
	}

	dir, err := tx.GetDirectory(ctx, directoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDirectoryNotFound, directoryID)
	}
	if err != nil {
		return nil, err
	}
	if dir.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	ancestors, err := s.perms.Ancestors(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !ancestors.Contains(root.ID) {
		return nil, fmt.Errorf("%w: %d", ErrNodeOutsideShare, directoryID)
	}
	return dir, nil
}

func (s *Service) ownedShare(ctx context.Context, actorID, shareID uint) (*model.Share, error) {
	share, err := s.store.GetShare(ctx, shareID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	if share.OwnerID != actorID {
		logrus.WithFields(logrus.Fields{"user_id": actorID, "share_id": shareID}).Warn("share change by non owner refused")
		return nil, ErrNotOwner
	}
	return share, nil
}

type AddUserRequest struct {
	ActorID uint
	ShareID uint
	// UserID or Email names the user to add.
	UserID uint
	Email  string
	Role   model.Role
}

type Membership struct {
	ShareID uint
	UserID  uint
	Role    model.Role
	// Created is false when an existing member got a new role.
	Created bool
}

// AddUser adds a member to the share, or changes the role of an existing
// member. Adding a member with the role they already have is an error.
func (s *Service) AddUser(ctx context.Context, req AddUserRequest) (*Membership, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	share, err := s.ownedShare(ctx, req.ActorID, req.ShareID)
	if err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, req.UserID, req.Email)
	if err != nil {
		return nil, err
	}
	if user.ID == share.OwnerID {
		return nil, ErrCannotShareWithSelf
	}

	existing, err := s.store.GetShareUser(ctx, share.ID, user.ID)
	if err == nil {
		if existing.Role == req.Role {
			return nil, ErrAlreadyMember
		}
		if err = s.changeRole(ctx, share, req.ActorID, existing, req.Role); err != nil {
			return nil, err
		}
		return &Membership{ShareID: share.ID, UserID: user.ID, Role: req.Role}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	err = s.store.CreateShareUser(ctx, &model.ShareUser{
		ShareID:   share.ID,
		UserID:    user.ID,
		Role:      req.Role,
		InvitedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrAlreadyMember
	}
	if err != nil {
		return nil, err
	}

	s.events.Record(ctx, events.Entry{
		ShareIDs:    []uint{share.ID},
		DirectoryID: &share.RootDirectoryID,
		UserID:      req.ActorID,
		Type:        model.EventUserAdded,
		Details:     map[string]any{"user_id": user.ID, "email": user.Email, "role": req.Role},
	})

	return &Membership{ShareID: share.ID, UserID: user.ID, Role: req.Role, Created: true}, nil
}

func (s *Service) findUser(ctx context.Context, userID uint, email string) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	switch {
	case userID != 0:
		user, err = s.store.GetUser(ctx, userID)
	case strings.TrimSpace(email) != "":
		user, err = s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	default:
		return nil, ErrUserNotFound
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// UpdateRole changes the role of an existing member.
func (s *Service) UpdateRole(ctx context.Context, actorID, shareID, userID uint, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	share, err := s.ownedShare(ctx, actorID, shareID)
	if err != nil {
		return err
	}

	member, err := s.store.GetShareUser(ctx, share.ID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotMember
	}
	if err != nil {
		return err
	}
	if member.Role == role {
		return ErrAlreadyMember
	}

	return s.changeRole(ctx, share, actorID, member, role)
}

func (s *Service) changeRole(ctx context.Context, share *model.Share, actorID uint, member *model.ShareUser, role model.Role) error {
	if err := s.store.UpdateShareUserRole(ctx, share.ID, member.UserID, role, s.clock.Now()); err != nil {
		return err
	}

	s.events.Record(ctx, events.Entry{
		ShareIDs:    []uint{share.ID},
		DirectoryID: &share.RootDirectoryID,
		UserID:      actorID,
		Type:        model.EventPermissionChanged,
		Details:     map[string]any{"user_id": member.UserID, "from": member.Role, "to": role},
	})
	return nil
}

func (s *Service) RemoveUser(ctx context.Context, actorID, shareID, userID uint) error {
	share, err := s.ownedShare(ctx, actorID, shareID)
	if err != nil {
		return err
	}

	removed, err := s.store.DeleteShareUser(ctx, share.ID, userID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotMember
	}

	s.events.Record(ctx, events.Entry{
		ShareIDs:    []uint{share.ID},
		DirectoryID: &share.RootDirectoryID,
		UserID:      actorID,
		Type:        model.EventUserRemoved,
		Details:     map[string]any{"user_id": userID},
	})
	return nil
}

// ListUsers lists the members of a share to its owner and members.
func (s *Service) ListUsers(ctx context.Context, actorID, shareID uint) ([]*model.ShareMember, error) {
	if _, err := s.store.GetShare(ctx, shareID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, err
	}
	if err := s.perms.RequireShare(ctx, actorID, shareID); err != nil {
		return nil, err
	}
	return s.store.ListShareMembers(ctx, shareID)
}

func (s *Service) CanAccess(ctx context.Context, userID, shareID uint) (bool, error) {
	return s.perms.CanAccessShare(ctx, userID, shareID)
}
