package service

import (
	"context"
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/events"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(s store.Store, perms *permission.Resolver, locks *lock.Manager, log *events.Log, clk clock.Clock) *DirectoryService {
	return &DirectoryService{store: s, perms: perms, locks: locks, events: log, clock: clk}
}

// DirectoryService changes directories. Every change checks permission
// first, then holds the directory lock while mutating and recording the event.
type DirectoryService struct {
	store  store.Store
	perms  *permission.Resolver
	locks  *lock.Manager
	events *events.Log
	clock  clock.Clock
}

func (d *DirectoryService) get(ctx context.Context, id uint) (*model.Directory, error) {
	dir, err := d.store.GetDirectory(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDirectoryNotFound
	}
	return dir, err
}

// CreateDirectory creates a directory. Without a parent it becomes a private
// root of the user; inside a parent it belongs to the parent's owner.
func (d *DirectoryService) CreateDirectory(ctx context.Context, userID uint, parentID *uint, name string) (*model.Directory, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	dir := &model.Directory{OwnerID: userID, Name: name}
	if parentID != nil {
		parent, err := d.get(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if err = d.perms.RequireDirectory(ctx, userID, parent.ID, permission.Edit); err != nil {
			return nil, err
		}
		dir.OwnerID = parent.OwnerID
		dir.ParentID = &parent.ID
		dir.CloudManaged = parent.CloudManaged
	}

	now := d.clock.Now()
	dir.CreatedAt = now
	dir.UpdatedAt = now
	if err = d.store.CreateDirectory(ctx, dir); err != nil {
		return nil, err
	}

	if dir.CloudManaged {
		d.events.Record(ctx, events.Entry{
			DirectoryID: &dir.ID,
			UserID:      userID,
			Type:        model.EventDirectoryCreated,
			Details:     map[string]any{"name": dir.Name, "parent_id": dir.ParentID},
		})
	}

	return dir, nil
}

func (d *DirectoryService) RenameDirectory(ctx context.Context, userID, directoryID uint, name string) (*model.Directory, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	dir, err := d.get(ctx, directoryID)
	if err != nil {
		return nil, err
	}
	if err = d.perms.RequireDirectory(ctx, userID, dir.ID, permission.Edit); err != nil {
		return nil, err
	}

	err = d.locks.WithLock(ctx, model.ResourceDirectory, dir.ID, userID, model.LockEditing, func() error {
		old := dir.Name
		dir.Name = name
		dir.UpdatedAt = d.clock.Now()
		if err := d.store.UpdateDirectory(ctx, dir); err != nil {
			return err
		}

		if dir.CloudManaged {
			d.events.Record(ctx, events.Entry{
				DirectoryID: &dir.ID,
				UserID:      userID,
				Type:        model.EventDirectoryUpdated,
				Details:     map[string]any{"old_name": old, "new_name": name},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dir, nil
}

// MoveDirectory moves a directory below a new parent. The caller needs edit
// on both, and the parent may not be the directory or one of its descendants.
func (d *DirectoryService) MoveDirectory(ctx context.Context, userID, directoryID, parentID uint) (*model.Directory, error) {
	dir, err := d.get(ctx, directoryID)
	if err != nil {
		return nil, err
	}
	parent, err := d.get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if err = d.perms.RequireDirectory(ctx, userID, dir.ID, permission.Edit); err != nil {
		return nil, err
	}
	if err = d.perms.RequireDirectory(ctx, userID, parent.ID, permission.Edit); err != nil {
		return nil, err
	}

	if parent.ID == dir.ID {
		return nil, ErrCycle
	}
	ancestors, err := d.perms.Ancestors(ctx, parent)
	if err != nil {
		return nil, err
	}
	if ancestors.Contains(dir.ID) {
		return nil, ErrCycle
	}

	err = d.locks.WithLock(ctx, model.ResourceDirectory, dir.ID, userID, model.LockMoving, func() error {
		// shares of the old location also see the directory leave
		before, err := d.sharesOf(ctx, dir)
		if err != nil {
			return err
		}

		var from *uint
		if dir.ParentID != nil {
			id := *dir.ParentID
			from = &id
		}
		dir.ParentID = &parent.ID
		dir.UpdatedAt = d.clock.Now()
		if err = d.store.UpdateDirectory(ctx, dir); err != nil {
			return err
		}

		after, err := d.sharesOf(ctx, dir)
		if err != nil {
			return err
		}
		shares := before.Union(after)
		if dir.CloudManaged || parent.CloudManaged {
			d.events.Record(ctx, events.Entry{
				ShareIDs:    sortedIDs(shares),
				DirectoryID: &dir.ID,
				UserID:      userID,
				Type:        model.EventDirectoryMoved,
				Details:     map[string]any{"from_parent_id": from, "to_parent_id": parent.ID},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dir, nil
}

// DeleteDirectory deletes a directory together with its subdirectories and
// their documents.
func (d *DirectoryService) DeleteDirectory(ctx context.Context, userID, directoryID uint) error {
	dir, err := d.get(ctx, directoryID)
	if err != nil {
		return err
	}
	if err = d.perms.RequireDirectory(ctx, userID, dir.ID, permission.Edit); err != nil {
		return err
	}

	return d.locks.WithLock(ctx, model.ResourceDirectory, dir.ID, userID, model.LockDeleting, func() error {
		subtree, err := d.subtree(ctx, dir)
		if err != nil {
			return err
		}
		shares, err := d.sharesOf(ctx, dir)
		if err != nil {
			return err
		}

		var documents int64
		err = d.store.Transaction(ctx, func(tx store.Store) error {
			// children first
			for i := len(subtree) - 1; i >= 0; i-- {
				n, err := tx.DeleteDirectoryDocuments(ctx, subtree[i])
				if err != nil {
					return err
				}
				documents += n
				if err = tx.DeleteDirectory(ctx, subtree[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{"user_id": userID, "directory_id": dir.ID}).
			Infof("deleted %d directories and %d documents", len(subtree), documents)

		if dir.CloudManaged {
			d.events.Record(ctx, events.Entry{
				ShareIDs:    sortedIDs(shares),
				DirectoryID: &dir.ID,
				UserID:      userID,
				Type:        model.EventDirectoryDeleted,
				Details:     map[string]any{"name": dir.Name, "directories": len(subtree), "documents": documents},
			})
		}
		return nil
	})
}

// subtree lists the directory and its descendants, parents before children.
func (d *DirectoryService) subtree(ctx context.Context, root *model.Directory) ([]uint, error) {
	seen := mapset.NewThreadUnsafeSet[uint](root.ID)
	ids := []uint{root.ID}
	level := []uint{root.ID}

	for depth := 0; len(level) > 0; depth++ {
		if depth >= permission.MaxDepth {
			return nil, ErrTreeTooDeep
		}

		var next []uint
		for _, id := range level {
			children, err := d.store.ListChildDirectories(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if seen.Add(child.ID) {
					ids = append(ids, child.ID)
					next = append(next, child.ID)
				}
			}
		}
		level = next
	}

	return ids, nil
}

func (d *DirectoryService) sharesOf(ctx context.Context, dir *model.Directory) (mapset.Set[uint], error) {
	ids, err := d.events.SharesOf(ctx, dir.ID)
	if err != nil {
		return nil, err
	}
	return mapset.NewThreadUnsafeSet[uint](ids...), nil
}
