package service

import (
	"context"
	"errors"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/events"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/store"
	"gorm.io/gorm"
)

// NewDocumentService creates a new DocumentService.
func NewDocumentService(s store.Store, perms *permission.Resolver, locks *lock.Manager, log *events.Log, clk clock.Clock) *DocumentService {
	return &DocumentService{store: s, perms: perms, locks: locks, events: log, clock: clk}
}

// DocumentService changes documents the same way DirectoryService changes
// directories.
type DocumentService struct {
	store  store.Store
	perms  *permission.Resolver
	locks  *lock.Manager
	events *events.Log
	clock  clock.Clock
}

func (d *DocumentService) get(ctx context.Context, id uint) (*model.Document, error) {
	doc, err := d.store.GetDocument(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

// sharesOf returns the shares covering the document's directory, or nil for
// documents outside cloud managed directories.
func (d *DocumentService) sharesOf(ctx context.Context, directoryID *uint) ([]uint, error) {
	if directoryID == nil {
		return nil, nil
	}
	ids, err := d.events.SharesOf(ctx, *directoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return ids, err
}

func (d *DocumentService) RenameDocument(ctx context.Context, userID, documentID uint, name string) (*model.Document, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	doc, err := d.get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err = d.perms.RequireDocumentEdit(ctx, userID, doc.ID); err != nil {
		return nil, err
	}

	err = d.locks.WithLock(ctx, model.ResourceDocument, doc.ID, userID, model.LockEditing, func() error {
		old := doc.DisplayName
		doc.DisplayName = name
		doc.UpdatedAt = d.clock.Now()
		if err := d.store.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		shares, err := d.sharesOf(ctx, doc.DirectoryID)
		if err != nil {
			return err
		}
		if len(shares) > 0 {
			d.events.Record(ctx, events.Entry{
				ShareIDs:    shares,
				DirectoryID: doc.DirectoryID,
				DocumentID:  &doc.ID,
				UserID:      userID,
				Type:        model.EventDocumentUpdated,
				Details:     map[string]any{"old_name": old, "new_name": name},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// MoveDocument moves a document into another directory the caller can edit.
func (d *DocumentService) MoveDocument(ctx context.Context, userID, documentID, directoryID uint) (*model.Document, error) {
	doc, err := d.get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	target, err := d.store.GetDirectory(ctx, directoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDirectoryNotFound
	}
	if err != nil {
		return nil, err
	}
	if err = d.perms.RequireDocumentEdit(ctx, userID, doc.ID); err != nil {
		return nil, err
	}
	if err = d.perms.RequireDirectory(ctx, userID, target.ID, permission.Edit); err != nil {
		return nil, err
	}

	err = d.locks.WithLock(ctx, model.ResourceDocument, doc.ID, userID, model.LockMoving, func() error {
		before, err := d.sharesOf(ctx, doc.DirectoryID)
		if err != nil {
			return err
		}

		from := doc.DirectoryID
		doc.DirectoryID = &target.ID
		doc.UpdatedAt = d.clock.Now()
		if err = d.store.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		after, err := d.sharesOf(ctx, doc.DirectoryID)
		if err != nil {
			return err
		}
		shares := mapset.NewThreadUnsafeSet[uint](before...).Union(mapset.NewThreadUnsafeSet[uint](after...))
		if shares.Cardinality() > 0 {
			d.events.Record(ctx, events.Entry{
				ShareIDs:    sortedIDs(shares),
				DirectoryID: doc.DirectoryID,
				DocumentID:  &doc.ID,
				UserID:      userID,
				Type:        model.EventDocumentMoved,
				Details:     map[string]any{"from_directory_id": from, "to_directory_id": target.ID},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

func (d *DocumentService) DeleteDocument(ctx context.Context, userID, documentID uint) error {
	doc, err := d.get(ctx, documentID)
	if err != nil {
		return err
	}
	if err = d.perms.RequireDocumentEdit(ctx, userID, doc.ID); err != nil {
		return err
	}

	return d.locks.WithLock(ctx, model.ResourceDocument, doc.ID, userID, model.LockDeleting, func() error {
		shares, err := d.sharesOf(ctx, doc.DirectoryID)
		if err != nil {
			return err
		}
		if err = d.store.DeleteDocument(ctx, doc.ID); err != nil {
			return err
		}

		if len(shares) > 0 {
			d.events.Record(ctx, events.Entry{
				ShareIDs:    shares,
				DirectoryID: doc.DirectoryID,
				DocumentID:  &doc.ID,
				UserID:      userID,
				Type:        model.EventDocumentDeleted,
				Details:     map[string]any{"name": doc.DisplayName},
			})
		}
		return nil
	})
}

func sortedIDs(set mapset.Set[uint]) []uint {
	ids := set.ToSlice()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
