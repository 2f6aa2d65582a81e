package server

import (
	"net/http"
	"time"

	"github.com/evolearn/studyhub/internal/share"
	"github.com/gin-gonic/gin"
)

func (h *handler) createShare(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req createShareRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	nodes := make([]share.Node, 0, len(req.Nodes))
	for _, node := range req.Nodes {
		nodes = append(nodes, share.Node{DirectoryID: node.DirectoryID, IncludeSubtree: node.IncludeSubtree})
	}

	created, err := h.app.Shares.Create(c.Request.Context(), share.CreateRequest{
		OwnerID:         id.UserID,
		RootDirectoryID: req.RootDirectoryID,
		Name:            req.Name,
		Description:     req.Description,
		Nodes:           nodes,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, &shareView{
		ID:              created.ID,
		OwnerID:         created.OwnerID,
		RootDirectoryID: created.RootDirectoryID,
		Name:            created.Name,
		Description:     created.Description,
		CreatedAt:       created.CreatedAt,
	})
}

func (h *handler) listShareUsers(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	shareID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	members, err := h.app.Shares.ListUsers(c.Request.Context(), id.UserID, shareID)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]*memberView, 0, len(members))
	for _, m := range members {
		views = append(views, &memberView{
			UserID:     m.UserID,
			Name:       m.Name,
			Email:      m.Email,
			Role:       m.Role,
			InvitedAt:  m.InvitedAt,
			AcceptedAt: m.AcceptedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

func (h *handler) addShareUser(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	shareID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req addShareUserRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	m, err := h.app.Shares.AddUser(c.Request.Context(), share.AddUserRequest{
		ActorID: id.UserID,
		ShareID: shareID,
		UserID:  req.UserID,
		Email:   req.Email,
		Role:    req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if m.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"share_id": m.ShareID, "user_id": m.UserID, "role": m.Role, "created": m.Created})
}

func (h *handler) updateShareUser(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	shareID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateShareUserRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	if err = h.app.Shares.UpdateRole(c.Request.Context(), id.UserID, shareID, userID, req.Role); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_id": shareID, "user_id": userID, "role": req.Role})
}

func (h *handler) removeShareUser(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	shareID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		writeError(c, err)
		return
	}

	if err = h.app.Shares.RemoveUser(c.Request.Context(), id.UserID, shareID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) shareHistory(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	shareID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := h.app.Events.History(c.Request.Context(), id.UserID, shareID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHistoryView(page))
}

// shareUpdates answers polling clients. since is RFC 3339; without it the
// answer is always true.
func (h *handler) shareUpdates(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	shareID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		if since, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			writeError(c, invalid("since", "%q is not an RFC 3339 time", raw))
			return
		}
	}

	updated, now, err := h.app.Events.HasUpdates(c.Request.Context(), id.UserID, shareID, since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_updates": updated, "server_time": now})
}
