package server

import (
	"context"
	"net/http"

	"github.com/evolearn/studyhub/internal/events"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *handler) acquireLock(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req acquireLockRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	ok, err := h.app.Locks.Acquire(ctx, req.ResourceType, req.ResourceID, id.UserID, req.LockType, req.TTL())
	if err != nil {
		writeError(c, err)
		return
	}

	held, err := h.app.Locks.Inspect(ctx, req.ResourceType, req.ResourceID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, &lock.LockedError{Lock: held})
		return
	}

	c.JSON(http.StatusOK, gin.H{"acquired": true, "lock": toLockView(held)})
}

func (h *handler) inspectLock(c *gin.Context) {
	rt, resourceID, err := resourceFromPath(c)
	if err != nil {
		writeError(c, err)
		return
	}

	held, err := h.app.Locks.Inspect(c.Request.Context(), rt, resourceID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"locked": held != nil, "lock": toLockView(held)})
}

func (h *handler) releaseLock(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rt, resourceID, err := resourceFromPath(c)
	if err != nil {
		writeError(c, err)
		return
	}

	released, err := h.app.Locks.Release(c.Request.Context(), rt, resourceID, id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if released {
		h.recordLockReleased(c.Request.Context(), rt, resourceID, id.UserID)
	}

	c.JSON(http.StatusOK, gin.H{"released": released})
}

// recordLockReleased logs the release on the shares the resource belongs to.
// Resources outside every share are not logged.
func (h *handler) recordLockReleased(ctx context.Context, rt model.ResourceType, resourceID, userID uint) {
	entry := events.Entry{
		UserID:  userID,
		Type:    model.EventLockReleased,
		Details: map[string]any{"resource_type": rt, "resource_id": resourceID},
	}

	dirID := resourceID
	if rt == model.ResourceDocument {
		doc, err := h.app.Store.GetDocument(ctx, resourceID)
		if err != nil || doc.DirectoryID == nil {
			return
		}
		dirID = *doc.DirectoryID
		entry.DocumentID = &doc.ID
	}
	entry.DirectoryID = &dirID

	shares, err := h.app.Events.SharesOf(ctx, dirID)
	if err != nil {
		logrus.Warnf("failed to resolve shares of directory %d: %v", dirID, err)
		return
	}
	if len(shares) == 0 {
		return
	}
	entry.ShareIDs = shares
	h.app.Events.Record(ctx, entry)
}
