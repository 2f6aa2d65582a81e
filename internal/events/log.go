package events

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/evolearn/studyhub/internal/cache"
	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

type Entry struct {
	// ShareIDs are the shares the event belongs to. When empty they are
	// derived from DirectoryID.
	ShareIDs    []uint
	DirectoryID *uint
	DocumentID  *uint
	UserID      uint
	Type        model.EventType
	Details     map[string]any
}

// Log is the audit trail of cloud managed content and share membership.
type Log struct {
	store    store.Store
	perms    *permission.Resolver
	activity cache.Activity
	clock    clock.Clock
}

func NewLog(s store.Store, perms *permission.Resolver, activity cache.Activity, clk clock.Clock) *Log {
	if activity == nil {
		activity = cache.NewMemoryActivity()
	}
	return &Log{store: s, perms: perms, activity: activity, clock: clk}
}

// Record appends the entry once per share it belongs to. It never fails:
// errors are logged and dropped.
func (l *Log) Record(ctx context.Context, entry Entry) {
	log := logrus.WithFields(logrus.Fields{"user_id": entry.UserID, "event_type": entry.Type})

	var details datatypes.JSON
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			log.Errorf("failed to encode event details: %v", err)
		} else {
			details = data
		}
	}

	shareIDs := entry.ShareIDs
	if len(shareIDs) == 0 && entry.DirectoryID != nil {
		ids, err := l.SharesOf(ctx, *entry.DirectoryID)
		if err != nil {
			log.Errorf("failed to resolve shares of directory %d: %v", *entry.DirectoryID, err)
		}
		shareIDs = ids
	}

	now := l.clock.Now()
	targets := make([]*uint, 0, len(shareIDs))
	for i := range shareIDs {
		targets = append(targets, &shareIDs[i])
	}
	if len(targets) == 0 {
		targets = append(targets, nil)
	}

	for _, shareID := range targets {
		event := &model.Event{
			ShareID:     shareID,
			DirectoryID: entry.DirectoryID,
			DocumentID:  entry.DocumentID,
			UserID:      entry.UserID,
			EventType:   entry.Type,
			Details:     details,
			CreatedAt:   now,
		}
		if err := l.store.CreateEvent(ctx, event); err != nil {
			log.Errorf("failed to record event: %v", err)
			continue
		}
		if shareID != nil {
			if err := l.activity.Touch(ctx, *shareID, now); err != nil {
				log.Warnf("failed to mark share %d active: %v", *shareID, err)
			}
		}
	}
}

// SharesOf returns the shares that cover a directory, either with a node on
// the directory itself or with a subtree node on one of its ancestors.
func (l *Log) SharesOf(ctx context.Context, directoryID uint) ([]uint, error) {
	dir, err := l.store.GetDirectory(ctx, directoryID)
	if err != nil {
		return nil, err
	}
	if !dir.CloudManaged {
		return nil, nil
	}

	ancestors, err := l.perms.Ancestors(ctx, dir)
	if err != nil {
		return nil, err
	}
	nodes, err := l.store.ListShareNodesByDirectories(ctx, append(ancestors.ToSlice(), dir.ID))
	if err != nil {
		return nil, err
	}

	shares := mapset.NewThreadUnsafeSet[uint]()
	for _, node := range nodes {
		if node.DirectoryID == dir.ID || node.IncludeSubtree {
			shares.Add(node.ShareID)
		}
	}

	ids := shares.ToSlice()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type HistoryPage struct {
	Events []*model.EventEntry
	Total  int64
	Limit  int
	Offset int
}

// History lists the events of a share, newest first.
func (l *Log) History(ctx context.Context, userID, shareID uint, limit, offset int) (*HistoryPage, error) {
	if err := l.perms.RequireShare(ctx, userID, shareID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	events, total, err := l.store.ListShareEvents(ctx, shareID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{Events: events, Total: total, Limit: limit, Offset: offset}, nil
}

// HasUpdates reports whether anything in the share changed after since. It
// also returns the server time the caller should poll with next.
func (l *Log) HasUpdates(ctx context.Context, userID, shareID uint, since time.Time) (bool, time.Time, error) {
	if err := l.perms.RequireShare(ctx, userID, shareID); err != nil {
		return false, time.Time{}, err
	}

	now := l.clock.Now()
	if since.IsZero() {
		return true, now, nil
	}

	changed, ok, err := l.activity.LastChange(ctx, shareID)
	if err != nil {
		logrus.Warnf("failed to read activity of share %d: %v", shareID, err)
	}
	if err == nil && ok && changed.After(since) {
		return true, now, nil
	}

	updated, err := l.store.HasShareChangesSince(ctx, shareID, since)
	if err != nil {
		return false, time.Time{}, err
	}
	return updated, now, nil
}
