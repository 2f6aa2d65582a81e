package server

import (
	"errors"
	"net/http"
	"os"

	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/storage"
	"github.com/evolearn/studyhub/internal/summary"
	"github.com/gin-gonic/gin"
)

func writeSubmission(c *gin.Context, sub *summary.Submission) {
	status := http.StatusAccepted
	if sub.Existing {
		status = http.StatusOK
	}
	c.JSON(status, &submissionView{JobID: sub.JobID, Status: sub.Status, Existing: sub.Existing})
}

func (h *handler) submitSummary(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req submitSummaryRequest
	if err = bind(c, &req); err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.DocumentID != nil {
		sub, err := h.app.Summaries.SubmitForDocument(ctx, id.UserID, *req.DocumentID, req.AnalysisType, req.Model)
		if err != nil {
			writeError(c, err)
			return
		}
		writeSubmission(c, sub)
		return
	}

	rel, err := storage.CleanRelative(req.FileRelPath)
	if err != nil {
		writeError(c, err)
		return
	}
	abs, err := h.app.Paths.Resolve(id.UserID, rel)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err = os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		writeError(c, invalid("file_rel_path", "%s does not exist", rel))
		return
	}

	sub, err := h.app.Summaries.Submit(ctx, summary.SubmitRequest{
		UserID:       id.UserID,
		FilePath:     abs,
		FileRelPath:  rel,
		AnalysisType: req.AnalysisType,
		Model:        req.Model,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeSubmission(c, sub)
}

// uploadSummary takes a multipart form with the file in "file" and
// optional "dir", "analysis_type" and "model" fields.
func (h *handler) uploadSummary(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		writeError(c, invalid("file", "is required: %v", err))
		return
	}
	if c.Request.MultipartForm != nil {
		defer func() {
			_ = c.Request.MultipartForm.RemoveAll()
		}()
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer file.Close()

	analysis := model.AnalysisType(c.DefaultPostForm("analysis_type", string(model.AnalysisFast)))

	sub, err := h.app.Summaries.SubmitUpload(c.Request.Context(), summary.UploadRequest{
		UserID:       id.UserID,
		DirRelPath:   c.PostForm("dir"),
		FileName:     header.Filename,
		Body:         file,
		AnalysisType: analysis,
		Model:        c.PostForm("model"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeSubmission(c, sub)
}

func (h *handler) summaryStatus(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	jobID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	status, err := h.app.Summaries.GetStatus(c.Request.Context(), jobID, id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobStatusView(status))
}

func (h *handler) summaryDetails(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	jobID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	job, err := h.app.Summaries.GetDetails(c.Request.Context(), jobID, id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobView(job))
}

func (h *handler) cancelSummary(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		writeError(c, err)
		return
	}
	jobID, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.app.Summaries.Cancel(c.Request.Context(), jobID, id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": res.JobID, "status": res.Status, "canceled": res.Canceled})
}
