package summary

import (
	"context"
	"errors"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/store"
	"gorm.io/gorm"
)

const (
	// ProgressClaimed is the progress of a job right after a worker picks it up.
	ProgressClaimed = 10
	// ProgressRetry is the progress of a job waiting for a rate limit retry.
	ProgressRetry = 5

	CanceledMessage = "Canceled by user"
	// RateLimitedMessage is stored on jobs sent back to pending after a rate limit.
	RateLimitedMessage = "Rate limit reached, the summary will be retried automatically"
	// QuotaExhaustedMessage is stored on jobs that gave up waiting for quota.
	QuotaExhaustedMessage = "Summarization quota exhausted, please try again later"
)

// Lifecycle moves jobs between statuses. Every method is a conditional update
// guarded by the statuses the job may leave, and reports whether it applied.
// Once a job is completed, failed or canceled no method changes it again.
type Lifecycle struct {
	store store.JobStore
	clock clock.Clock
}

func NewLifecycle(s store.JobStore, clk clock.Clock) *Lifecycle {
	return &Lifecycle{store: s, clock: clk}
}

// Claim marks the oldest pending job as processing and returns it, or nil
// when nothing is pending.
func (l *Lifecycle) Claim(ctx context.Context) (*model.SummaryJob, error) {
	// another worker may claim the same row between the read and the update
	for attempt := 0; attempt < 5; attempt++ {
		job, err := l.store.NextPendingJob(ctx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		now := l.clock.Now()
		ok, err := l.store.TransitionJob(ctx, job.ID, []model.JobStatus{model.JobPending}, map[string]any{
			"status":     model.JobProcessing,
			"progress":   ProgressClaimed,
			"started_at": now,
			"updated_at": now,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			job.Status = model.JobProcessing
			job.Progress = ProgressClaimed
			job.StartedAt = &now
			return job, nil
		}
	}

	return nil, nil
}

// Status re-reads the job's current status.
func (l *Lifecycle) Status(ctx context.Context, id uint) (model.JobStatus, error) {
	job, err := l.store.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// Progress records progress on a processing job. It returns false once the
// job left processing, which means it was canceled.
func (l *Lifecycle) Progress(ctx context.Context, id uint, progress int) (bool, error) {
	return l.store.TransitionJob(ctx, id, []model.JobStatus{model.JobProcessing}, map[string]any{
		"progress":   progress,
		"updated_at": l.clock.Now(),
	})
}

func (l *Lifecycle) Complete(ctx context.Context, id uint, summary string) (bool, error) {
	now := l.clock.Now()
	return l.store.TransitionJob(ctx, id, []model.JobStatus{model.JobProcessing}, map[string]any{
		"status":        model.JobCompleted,
		"progress":      100,
		"summary_text":  summary,
		"error_message": "",
		"finished_at":   now,
		"updated_at":    now,
	})
}

func (l *Lifecycle) Fail(ctx context.Context, id uint, message string) (bool, error) {
	now := l.clock.Now()
	return l.store.TransitionJob(ctx, id, []model.JobStatus{model.JobProcessing}, map[string]any{
		"status":        model.JobFailed,
		"error_message": message,
		"finished_at":   now,
		"updated_at":    now,
	})
}

// FailPending fails a job that is waiting in pending, used for jobs that
// will never get a chance to run.
func (l *Lifecycle) FailPending(ctx context.Context, id uint, message string) (bool, error) {
	now := l.clock.Now()
	return l.store.TransitionJob(ctx, id, []model.JobStatus{model.JobPending}, map[string]any{
		"status":        model.JobFailed,
		"error_message": message,
		"finished_at":   now,
		"updated_at":    now,
	})
}

// Retry puts a processing job back to pending so a later run picks it up.
func (l *Lifecycle) Retry(ctx context.Context, id uint, message string) (bool, error) {
	return l.store.TransitionJob(ctx, id, []model.JobStatus{model.JobProcessing}, map[string]any{
		"status":        model.JobPending,
		"progress":      ProgressRetry,
		"error_message": message,
		"retry_count":   gorm.Expr("retry_count + 1"),
		"updated_at":    l.clock.Now(),
	})
}

// Cancel moves a pending or processing job to canceled.
func (l *Lifecycle) Cancel(ctx context.Context, id uint) (bool, error) {
	now := l.clock.Now()
	return l.store.TransitionJob(ctx, id, model.ActiveJobStatuses, map[string]any{
		"status":        model.JobCanceled,
		"error_message": CanceledMessage,
		"finished_at":   now,
		"updated_at":    now,
	})
}
