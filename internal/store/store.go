package store

import (
	"context"
	"time"

	"github.com/evolearn/studyhub/internal/model"
)

type Store interface {
	UserStore
	DirectoryStore
	DocumentStore
	ShareStore
	LockStore
	JobStore
	EventStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type UserStore interface {
	// CreateUser creates a new user.
	CreateUser(ctx context.Context, user *model.User) error
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id uint) (*model.User, error)
	// GetUserByEmail retrieves a user by email address.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// GetUserByToken retrieves the user owning an opaque auth token.
	GetUserByToken(ctx context.Context, token string) (*model.User, error)
}

type DirectoryStore interface {
	// CreateDirectory creates a new directory.
	CreateDirectory(ctx context.Context, dir *model.Directory) error
	// GetDirectory retrieves a directory by ID.
	GetDirectory(ctx context.Context, id uint) (*model.Directory, error)
	// ListChildDirectories retrieves the direct children of a directory.
	ListChildDirectories(ctx context.Context, parentID uint) ([]*model.Directory, error)
	// UpdateDirectory saves all fields of a directory.
	UpdateDirectory(ctx context.Context, dir *model.Directory) error
	// DeleteDirectory deletes a directory by ID.
	DeleteDirectory(ctx context.Context, id uint) error
}

type DocumentStore interface {
	// CreateDocument creates a new document.
	CreateDocument(ctx context.Context, doc *model.Document) error
	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id uint) (*model.Document, error)
	// FindDocument retrieves a document by owner, directory and display name.
	FindDocument(ctx context.Context, ownerID uint, directoryID *uint, name string) (*model.Document, error)
	// UpdateDocument saves all fields of a document.
	UpdateDocument(ctx context.Context, doc *model.Document) error
	// DeleteDocument deletes a document by ID.
	DeleteDocument(ctx context.Context, id uint) error
	// DeleteDirectoryDocuments deletes every document inside a directory.
	DeleteDirectoryDocuments(ctx context.Context, directoryID uint) (int64, error)
}

type ShareStore interface {
	// CreateShare creates a new share.
	CreateShare(ctx context.Context, share *model.Share) error
	// GetShare retrieves a share by ID.
	GetShare(ctx context.Context, id uint) (*model.Share, error)
	// CreateShareNode adds a directory to a share.
	CreateShareNode(ctx context.Context, node *model.ShareNode) error
	// ListShareNodes retrieves the nodes of a share.
	ListShareNodes(ctx context.Context, shareID uint) ([]*model.ShareNode, error)
	// ListShareNodesByDirectories retrieves the share nodes placed on any of the directories.
	ListShareNodesByDirectories(ctx context.Context, directoryIDs []uint) ([]*model.ShareNode, error)
	// ListUserGrants retrieves every share node the user reaches through share membership.
	ListUserGrants(ctx context.Context, userID uint) ([]*model.ShareGrant, error)
	// GetShareUser retrieves the membership of a user in a share.
	GetShareUser(ctx context.Context, shareID, userID uint) (*model.ShareUser, error)
	// CreateShareUser adds a member to a share.
	CreateShareUser(ctx context.Context, member *model.ShareUser) error
	// UpdateShareUserRole changes the role of a member.
	UpdateShareUserRole(ctx context.Context, shareID, userID uint, role model.Role, at time.Time) error
	// DeleteShareUser removes a member from a share.
	DeleteShareUser(ctx context.Context, shareID, userID uint) (int64, error)
	// ListShareMembers retrieves the members of a share with their profiles.
	ListShareMembers(ctx context.Context, shareID uint) ([]*model.ShareMember, error)
	// HasShareChangesSince reports whether a share, its members or its content changed after since.
	HasShareChangesSince(ctx context.Context, shareID uint, since time.Time) (bool, error)
}

type LockStore interface {
	// DeleteExpiredLocks deletes the expired locks of every resource type.
	DeleteExpiredLocks(ctx context.Context, now time.Time) (int64, error)
	// DeleteExpiredLock deletes the lock of one resource if it has expired.
	DeleteExpiredLock(ctx context.Context, rt model.ResourceType, resourceID uint, now time.Time) error
	// GetLock retrieves the lock of a resource together with the holder's profile.
	GetLock(ctx context.Context, rt model.ResourceType, resourceID uint) (*model.Lock, error)
	// CreateLock inserts a lock, failing with gorm.ErrDuplicatedKey when the resource is already locked.
	CreateLock(ctx context.Context, lock *model.Lock) error
	// RefreshLock extends a lock held by the user and sets its type.
	RefreshLock(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType, expiresAt time.Time) (int64, error)
	// DeleteLock deletes a lock held by the user.
	DeleteLock(ctx context.Context, rt model.ResourceType, resourceID, userID uint) (int64, error)
	// DeleteLockOfType deletes a lock held by the user only while it has the given type.
	DeleteLockOfType(ctx context.Context, rt model.ResourceType, resourceID, userID uint, lockType model.LockType) (int64, error)
}

type JobStore interface {
	// CreateJob creates a new summary job.
	CreateJob(ctx context.Context, job *model.SummaryJob) error
	// GetJob retrieves a summary job by ID.
	GetJob(ctx context.Context, id uint) (*model.SummaryJob, error)
	// FindActiveJob retrieves a pending or processing job for the same user, file and analysis.
	FindActiveJob(ctx context.Context, userID uint, fileRelPath string, analysis model.AnalysisType) (*model.SummaryJob, error)
	// FindRecentActiveJob retrieves the newest pending or processing job of a user created after since.
	FindRecentActiveJob(ctx context.Context, userID uint, since time.Time) (*model.SummaryJob, error)
	// NextPendingJob retrieves the oldest pending job.
	NextPendingJob(ctx context.Context) (*model.SummaryJob, error)
	// TransitionJob applies updates only while the job is in one of the from statuses.
	TransitionJob(ctx context.Context, id uint, from []model.JobStatus, updates map[string]any) (bool, error)
	// ListStaleJobs retrieves jobs in status that were last updated before the cutoff.
	ListStaleJobs(ctx context.Context, status model.JobStatus, before time.Time) ([]*model.SummaryJob, error)
	// ListActiveJobFiles retrieves the file paths referenced by pending or processing jobs.
	ListActiveJobFiles(ctx context.Context) ([]string, error)
}

type EventStore interface {
	// CreateEvent appends an event.
	CreateEvent(ctx context.Context, event *model.Event) error
	// ListShareEvents retrieves the events of a share, newest first, and the total count.
	ListShareEvents(ctx context.Context, shareID uint, limit, offset int) ([]*model.EventEntry, int64, error)
}
