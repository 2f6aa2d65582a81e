package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/storage"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const DefaultDedupWindow = 5 * time.Second

// Notifier is told about every new job so an idle worker can start at once.
type Notifier interface {
	Publish(ctx context.Context, jobID uint) error
}

type Options struct {
	// DedupWindow is how long after a submission further submissions of the same user are refused.
	DedupWindow time.Duration
	// ProcessingDir receives uploads waiting to be summarized.
	ProcessingDir string
}

type Service struct {
	store     store.Store
	lifecycle *Lifecycle
	locks     *lock.Manager
	perms     *permission.Resolver
	notifier  Notifier
	clock     clock.Clock
	opts      Options
}

func NewService(s store.Store, locks *lock.Manager, perms *permission.Resolver, notifier Notifier, clk clock.Clock, opts Options) *Service {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}

	return &Service{
		store:     s,
		lifecycle: NewLifecycle(s, clk),
		locks:     locks,
		perms:     perms,
		notifier:  notifier,
		clock:     clk,
		opts:      opts,
	}
}

type SubmitRequest struct {
	UserID       uint
	DocumentID   *uint
	FilePath     string
	FileRelPath  string
	AnalysisType model.AnalysisType
	Model        string
	// HoldsDocumentLock marks a submission that took the summarizing lock on
	// DocumentID.
	HoldsDocumentLock bool
}

type Submission struct {
	JobID uint
	// Existing is set when an active job for the same file and analysis was returned.
	Existing bool
	Status   model.JobStatus
}

// Submit creates a pending job unless the user already has an active job for
// the same file and analysis, in which case that job is returned. A user with
// any job submitted within the dedup window gets a *RateLimitedError.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if !req.AnalysisType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAnalysisType, req.AnalysisType)
	}
	if strings.TrimSpace(req.FileRelPath) == "" {
		return nil, ErrMissingFile
	}

	var sub *Submission
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		existing, err := tx.FindActiveJob(ctx, req.UserID, req.FileRelPath, req.AnalysisType)
		if err == nil {
			sub = &Submission{JobID: existing.ID, Existing: true, Status: existing.Status}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.clock.Now()
		recent, err := tx.FindRecentActiveJob(ctx, req.UserID, now.Add(-s.opts.DedupWindow))
		if err == nil {
			return &RateLimitedError{ExistingJobID: recent.ID}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		job := &model.SummaryJob{
			UserID:       req.UserID,
			DocumentID:   req.DocumentID,
			FilePath:     req.FilePath,
			FileRelPath:  req.FileRelPath,
			AnalysisType: req.AnalysisType,
			ModelName:    NormalizeModel(req.AnalysisType, req.Model),
			Status:       model.JobPending,

			HoldsDocumentLock: req.HoldsDocumentLock,
		}
		job.CreatedAt = now
		job.UpdatedAt = now
		if err = tx.CreateJob(ctx, job); err != nil {
			return err
		}

		sub = &Submission{JobID: job.ID, Status: job.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !sub.Existing {
		logrus.WithFields(logrus.Fields{"user_id": req.UserID, "job_id": sub.JobID}).Infof("summary job queued for %s", req.FileRelPath)
		s.notify(ctx, sub.JobID)
	}

	return sub, nil
}

func (s *Service) notify(ctx context.Context, jobID uint) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, jobID); err != nil {
		logrus.Warnf("failed to publish summary job %d: %v", jobID, err)
	}
}

// SubmitForDocument summarizes a stored document. Cloud managed documents need
// edit permission and are locked for summarizing until the job ends; local
// documents are owner only.
func (s *Service) SubmitForDocument(ctx context.Context, userID, documentID uint, analysis model.AnalysisType, modelName string) (*Submission, error) {
	if !analysis.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAnalysisType, analysis)
	}

	doc, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}

	cloud, err := s.isCloudDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	if !cloud {
		if doc.OwnerID != userID {
			return nil, &permission.DeniedError{UserID: userID, ResourceType: "document", ResourceID: documentID, Required: permission.Edit}
		}
		return s.Submit(ctx, SubmitRequest{
			UserID:       userID,
			DocumentID:   &doc.ID,
			FileRelPath:  doc.StoragePath,
			AnalysisType: analysis,
			Model:        modelName,
		})
	}

	if err = s.perms.RequireDocumentEdit(ctx, userID, documentID); err != nil {
		return nil, err
	}
	if err = s.locks.Require(ctx, model.ResourceDocument, documentID, userID, model.LockSummarizing); err != nil {
		return nil, err
	}

	sub, err := s.Submit(ctx, SubmitRequest{
		UserID:            userID,
		DocumentID:        &doc.ID,
		FileRelPath:       doc.StoragePath,
		AnalysisType:      analysis,
		Model:             modelName,
		HoldsDocumentLock: true,
	})
	if err != nil {
		if _, rerr := s.locks.ReleaseType(ctx, model.ResourceDocument, documentID, userID, model.LockSummarizing); rerr != nil {
			logrus.Warnf("failed to release summarizing lock on document %d: %v", documentID, rerr)
		}
		return nil, err
	}

	return sub, nil
}

func (s *Service) isCloudDocument(ctx context.Context, doc *model.Document) (bool, error) {
	if doc.DirectoryID == nil {
		return false, nil
	}
	dir, err := s.store.GetDirectory(ctx, *doc.DirectoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return dir.CloudManaged, nil
}

type UploadRequest struct {
	UserID       uint
	DirRelPath   string
	FileName     string
	Body         io.Reader
	AnalysisType model.AnalysisType
	Model        string
}

// SubmitUpload parks an uploaded file in the processing directory and submits
// it. The parked file is removed again when no new job was created.
func (s *Service) SubmitUpload(ctx context.Context, req UploadRequest) (*Submission, error) {
	name := strings.TrimSpace(req.FileName)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: file name %q", storage.ErrInvalidPath, req.FileName)
	}
	dir, err := storage.CleanRelative(req.DirRelPath)
	if err != nil {
		return nil, err
	}
	if !req.AnalysisType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAnalysisType, req.AnalysisType)
	}

	if err = os.MkdirAll(s.opts.ProcessingDir, 0o755); err != nil {
		return nil, err
	}

	parked := filepath.Join(s.opts.ProcessingDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	if err = writeFile(parked, req.Body); err != nil {
		return nil, err
	}

	sub, err := s.Submit(ctx, SubmitRequest{
		UserID:       req.UserID,
		FilePath:     parked,
		FileRelPath:  path.Join(dir, name),
		AnalysisType: req.AnalysisType,
		Model:        req.Model,
	})
	if err != nil || sub.Existing {
		if rerr := os.Remove(parked); rerr != nil && !os.IsNotExist(rerr) {
			logrus.Warnf("failed to remove parked upload %s: %v", parked, rerr)
		}
	}

	return sub, err
}

func writeFile(target string, body io.Reader) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return err
	}
	return f.Close()
}

type CancelResult struct {
	JobID    uint
	Status   model.JobStatus
	Canceled bool
}

// Cancel cancels an active job of the user. Canceling a finished job changes
// nothing and reports the status it ended in.
func (s *Service) Cancel(ctx context.Context, jobID, userID uint) (*CancelResult, error) {
	job, err := s.ownJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return &CancelResult{JobID: job.ID, Status: job.Status}, nil
	}

	ok, err := s.lifecycle.Cancel(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// finished between the read and the update
		status, err := s.lifecycle.Status(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return &CancelResult{JobID: job.ID, Status: status}, nil
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "job_id": job.ID}).Info("summary job canceled")
	s.releaseDocumentLock(ctx, job)

	return &CancelResult{JobID: job.ID, Status: model.JobCanceled, Canceled: true}, nil
}

func (s *Service) releaseDocumentLock(ctx context.Context, job *model.SummaryJob) {
	if job.DocumentID == nil || !job.HoldsDocumentLock || s.locks == nil {
		return
	}
	if _, err := s.locks.ReleaseType(ctx, model.ResourceDocument, *job.DocumentID, job.UserID, model.LockSummarizing); err != nil {
		logrus.Warnf("failed to release summarizing lock on document %d: %v", *job.DocumentID, err)
	}
}

type Status struct {
	JobID        uint
	Status       model.JobStatus
	Progress     int
	AnalysisType model.AnalysisType
	Model        string
	// Summary is only set for completed jobs.
	Summary string
	// Error is only set for failed jobs.
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetStatus reports the progress of one of the user's jobs.
func (s *Service) GetStatus(ctx context.Context, jobID, userID uint) (*Status, error) {
	job, err := s.ownJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		JobID:        job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		AnalysisType: job.AnalysisType,
		Model:        job.ModelName,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	switch job.Status {
	case model.JobCompleted:
		status.Summary = job.SummaryText
	case model.JobFailed:
		status.Error = job.ErrorMessage
	}

	return status, nil
}

// GetDetails returns the whole job row. Asking for another user's job fails
// with ErrForbidden.
func (s *Service) GetDetails(ctx context.Context, jobID, userID uint) (*model.SummaryJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrForbidden
	}
	return job, nil
}

func (s *Service) ownJob(ctx context.Context, jobID, userID uint) (*model.SummaryJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}
