package server

import (
	"encoding/json"
	"time"

	"github.com/evolearn/studyhub/internal/events"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/summary"
)

type lockView struct {
	ResourceType model.ResourceType `json:"resource_type"`
	ResourceID   uint               `json:"resource_id"`
	LockedBy     uint               `json:"locked_by"`
	LockType     model.LockType     `json:"lock_type"`
	HolderName   string             `json:"holder_name,omitempty"`
	HolderEmail  string             `json:"holder_email,omitempty"`
	LockedAt     time.Time          `json:"locked_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

func toLockView(l *model.Lock) *lockView {
	if l == nil {
		return nil
	}
	return &lockView{
		ResourceType: l.ResourceType,
		ResourceID:   l.ResourceID,
		LockedBy:     l.LockedBy,
		LockType:     l.LockType,
		HolderName:   l.HolderName,
		HolderEmail:  l.HolderEmail,
		LockedAt:     l.LockedAt,
		ExpiresAt:    l.ExpiresAt,
	}
}

type directoryView struct {
	ID           uint      `json:"id"`
	OwnerID      uint      `json:"owner_id"`
	ParentID     *uint     `json:"parent_id"`
	Name         string    `json:"name"`
	CloudManaged bool      `json:"cloud_managed"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toDirectoryView(d *model.Directory) *directoryView {
	return &directoryView{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		ParentID:     d.ParentID,
		Name:         d.Name,
		CloudManaged: d.CloudManaged,
		UpdatedAt:    d.UpdatedAt,
	}
}

type documentView struct {
	ID          uint      `json:"id"`
	OwnerID     uint      `json:"owner_id"`
	DirectoryID *uint     `json:"directory_id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toDocumentView(d *model.Document) *documentView {
	return &documentView{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		DirectoryID: d.DirectoryID,
		Name:        d.DisplayName,
		MimeType:    d.MimeType,
		UpdatedAt:   d.UpdatedAt,
	}
}

type submissionView struct {
	JobID    uint            `json:"job_id"`
	Status   model.JobStatus `json:"status"`
	Existing bool            `json:"existing"`
}

type jobStatusView struct {
	JobID        uint               `json:"job_id"`
	Status       model.JobStatus    `json:"status"`
	Progress     int                `json:"progress"`
	AnalysisType model.AnalysisType `json:"analysis_type"`
	Model        string             `json:"model"`
	Summary      string             `json:"summary,omitempty"`
	Error        string             `json:"error,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func toJobStatusView(s *summary.Status) *jobStatusView {
	return &jobStatusView{
		JobID:        s.JobID,
		Status:       s.Status,
		Progress:     s.Progress,
		AnalysisType: s.AnalysisType,
		Model:        s.Model,
		Summary:      s.Summary,
		Error:        s.Error,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

type jobView struct {
	ID           uint               `json:"id"`
	DocumentID   *uint              `json:"document_id,omitempty"`
	FileRelPath  string             `json:"file_rel_path"`
	AnalysisType model.AnalysisType `json:"analysis_type"`
	Model        string             `json:"model"`
	Status       model.JobStatus    `json:"status"`
	Progress     int                `json:"progress"`
	Summary      string             `json:"summary,omitempty"`
	Error        string             `json:"error,omitempty"`
	RetryCount   int                `json:"retry_count"`
	CreatedAt    time.Time          `json:"created_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
}

func toJobView(j *model.SummaryJob) *jobView {
	return &jobView{
		ID:           j.ID,
		DocumentID:   j.DocumentID,
		FileRelPath:  j.FileRelPath,
		AnalysisType: j.AnalysisType,
		Model:        j.ModelName,
		Status:       j.Status,
		Progress:     j.Progress,
		Summary:      j.SummaryText,
		Error:        j.ErrorMessage,
		RetryCount:   j.RetryCount,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
}

type shareView struct {
	ID              uint      `json:"id"`
	OwnerID         uint      `json:"owner_id"`
	RootDirectoryID uint      `json:"root_directory_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

type memberView struct {
	UserID     uint       `json:"user_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       model.Role `json:"role"`
	InvitedAt  time.Time  `json:"invited_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

type eventView struct {
	ID          uint            `json:"id"`
	ShareID     *uint           `json:"share_id,omitempty"`
	DirectoryID *uint           `json:"directory_id,omitempty"`
	DocumentID  *uint           `json:"document_id,omitempty"`
	UserID      uint            `json:"user_id"`
	UserName    string          `json:"user_name"`
	UserEmail   string          `json:"user_email"`
	EventType   model.EventType `json:"event_type"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type historyView struct {
	Events []*eventView `json:"events"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func toHistoryView(page *events.HistoryPage) *historyView {
	view := &historyView{
		Events: make([]*eventView, 0, len(page.Events)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for _, e := range page.Events {
		ev := &eventView{
			ID:          e.ID,
			ShareID:     e.ShareID,
			DirectoryID: e.DirectoryID,
			DocumentID:  e.DocumentID,
			UserID:      e.UserID,
			UserName:    e.UserName,
			UserEmail:   e.UserEmail,
			EventType:   e.EventType,
			CreatedAt:   e.CreatedAt,
		}
		if len(e.Details) > 0 {
			ev.Details = json.RawMessage(e.Details)
		}
		view.Events = append(view.Events, ev)
	}
	return view
}
