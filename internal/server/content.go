package server

import (
	"net/http"

	"github.com/evolearn/studyhub/internal/model"
	"github.com/gin-gonic/gin"
)

func (h *handler) directoryPermission(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	dirID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	level, err := levelFromQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	allowed, err := h.app.Permissions.HasPermission(c.Request.Context(), id.UserID, dirID, level)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"directory_id": dirID, "level": level, "allowed": allowed})
}

func (h *handler) documentPermission(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	docID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	allowed, err := h.app.Permissions.CanEditDocument(c.Request.Context(), id.UserID, docID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_id": docID, "can_edit": allowed})
}

func (h *handler) createDirectory(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req createDirectoryRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	dir, err := h.app.Directories.CreateDirectory(c.Request.Context(), id.UserID, req.ParentID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDirectoryView(dir))
}

func (h *handler) updateDirectory(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	dirID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateDirectoryRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	var dir *model.Directory
	if req.Name != nil {
		if dir, err = h.app.Directories.RenameDirectory(c.Request.Context(), id.UserID, dirID, *req.Name); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.ParentID != nil {
		if dir, err = h.app.Directories.MoveDirectory(c.Request.Context(), id.UserID, dirID, *req.ParentID); err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, toDirectoryView(dir))
}

func (h *handler) deleteDirectory(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	dirID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	if err = h.app.Directories.DeleteDirectory(c.Request.Context(), id.UserID, dirID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) updateDocument(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	docID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateDocumentRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	var doc *model.Document
	if req.Name != nil {
		if doc, err = h.app.Documents.RenameDocument(c.Request.Context(), id.UserID, docID, *req.Name); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.DirectoryID != nil {
		if doc, err = h.app.Documents.MoveDocument(c.Request.Context(), id.UserID, docID, *req.DirectoryID); err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, toDocumentView(doc))
}

func (h *handler) deleteDocument(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	docID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	if err = h.app.Documents.DeleteDocument(c.Request.Context(), id.UserID, docID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
