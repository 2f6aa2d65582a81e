package model

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCanceled   JobStatus = "canceled"
)

// ActiveJobStatuses are the statuses a job can still leave.
var ActiveJobStatuses = []JobStatus{JobPending, JobProcessing}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

type AnalysisType string

const (
	AnalysisFast     AnalysisType = "summary_fast"
	AnalysisDetailed AnalysisType = "summary_detailed"
)

func (a AnalysisType) Valid() bool {
	return a == AnalysisFast || a == AnalysisDetailed
}

type SummaryJob struct {
	gorm.Model
	UserID     uint  `gorm:"index:idx_job_dedup;not null"`
	DocumentID *uint `gorm:"index"`
	// FilePath is absolute, usually a file in the processing queue.
	FilePath string
	// FileRelPath is relative to the user's storage root.
	FileRelPath  string       `gorm:"index:idx_job_dedup"`
	AnalysisType AnalysisType `gorm:"index:idx_job_dedup;not null"`
	ModelName    string       `gorm:"column:model"`
	Status       JobStatus    `gorm:"index;not null;default:pending"`
	Progress     int          `gorm:"not null;default:0"`
	SummaryText  string
	ErrorMessage string
	RetryCount   int `gorm:"not null;default:0"`
	// HoldsDocumentLock is set when submission took a summarizing lock on
	// the document for the lifetime of the job.
	HoldsDocumentLock bool `gorm:"not null;default:false"`
	StartedAt         *time.Time
	FinishedAt        *time.Time
}

func (SummaryJob) TableName() string {
	return "summary_jobs"
}
