package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evolearn/studyhub/internal/ai"
	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/storage"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/evolearn/studyhub/internal/summary"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultThrottle            = 10 * time.Second
	DefaultPollInterval        = 30 * time.Second
	DefaultMaxTextChars        = 500000
	DefaultMaxRateLimitRetries = 10

	ProgressExtracting  = 25
	ProgressExtracted   = 50
	ProgressSummarizing = 75
)

type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string, analysis model.AnalysisType, modelName string) (string, error)
}

// Waiter blocks until a job may be ready, see queue.JobQueue.
type Waiter interface {
	Wait(ctx context.Context, timeout time.Duration) (uint, bool, error)
}

type Config struct {
	// Throttle is the pause after each processed job.
	Throttle time.Duration
	// PollInterval bounds how long an idle loop waits before polling the store.
	PollInterval time.Duration
	// MaxTextChars caps the extracted text handed to the summarizer.
	MaxTextChars int
	// MaxRateLimitRetries is how often a job may go back to pending, 0 means no limit.
	MaxRateLimitRetries int
	// ProcessingDir holds uploads; files there are removed once their job ends.
	ProcessingDir string
}

func (c Config) withDefaults() Config {
	if c.Throttle < 0 {
		c.Throttle = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxTextChars <= 0 {
		c.MaxTextChars = DefaultMaxTextChars
	}
	if c.MaxRateLimitRetries < 0 {
		c.MaxRateLimitRetries = 0
	}
	return c
}

// Outcome is what a single invocation did with the job it claimed.
type Outcome int

const (
	OutcomeIdle Outcome = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeRetried
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeRetried:
		return "retried"
	case OutcomeCanceled:
		return "canceled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Result struct {
	JobID   uint
	Outcome Outcome
	// Message is the error stored on failed or retried jobs.
	Message string
}

// Worker drives summary jobs from pending to a terminal status. Each RunOnce
// handles at most one job; parallelism comes from running more invocations.
type Worker struct {
	store      store.Store
	lifecycle  *summary.Lifecycle
	locks      *lock.Manager
	paths      *storage.Paths
	blobs      storage.Blobs
	extractor  Extractor
	summarizer Summarizer
	clock      clock.Clock
	cfg        Config
}

func New(s store.Store, locks *lock.Manager, paths *storage.Paths, blobs storage.Blobs, extractor Extractor, summarizer Summarizer, clk clock.Clock, cfg Config) *Worker {
	return &Worker{
		store:      s,
		lifecycle:  summary.NewLifecycle(s, clk),
		locks:      locks,
		paths:      paths,
		blobs:      blobs,
		extractor:  extractor,
		summarizer: summarizer,
		clock:      clk,
		cfg:        cfg.withDefaults(),
	}
}

// RunOnce claims the oldest pending job and processes it. The returned error
// is only set when no job could be claimed; failures of the job itself are
// stored on the job.
func (w *Worker) RunOnce(ctx context.Context) (*Result, error) {
	job, err := w.lifecycle.Claim(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim summary job: %w", err)
	}
	if job == nil {
		return &Result{Outcome: OutcomeIdle}, nil
	}

	log := logrus.WithFields(logrus.Fields{"job_id": job.ID, "user_id": job.UserID})
	log.Infof("[worker] processing %s (%s, %s)", job.FileRelPath, job.AnalysisType, job.ModelName)

	src := w.resolveSource(ctx, job)
	res := w.process(ctx, job, src, log)
	w.cleanup(ctx, job, src, res, log)

	log.Infof("[worker] job %s", res.Outcome)
	return res, nil
}

func (w *Worker) process(ctx context.Context, job *model.SummaryJob, src source, log *logrus.Entry) *Result {
	// checkpoint: the job may have been canceled between claim and start
	status, err := w.lifecycle.Status(ctx, job.ID)
	if err != nil {
		return w.fail(ctx, job, fmt.Sprintf("read job status: %v", err), log)
	}
	if status == model.JobCanceled {
		return w.canceled(job)
	}

	if !w.checkpoint(ctx, job, ProgressExtracting, log) {
		return w.canceled(job)
	}
	if src.path == "" {
		return w.fail(ctx, job, "source file not found", log)
	}

	text, err := w.extractor.Extract(ctx, src.path)
	if err != nil {
		if ctx.Err() != nil {
			return w.interrupted(ctx, job, log)
		}
		return w.fail(ctx, job, fmt.Sprintf("text extraction failed: %v", err), log)
	}

	if !w.checkpoint(ctx, job, ProgressExtracted, log) {
		return w.canceled(job)
	}
	if strings.TrimSpace(text) == "" {
		return w.fail(ctx, job, "no text could be extracted from the document", log)
	}

	text = truncate(text, w.cfg.MaxTextChars)

	if !w.checkpoint(ctx, job, ProgressSummarizing, log) {
		return w.canceled(job)
	}

	summaryText, err := w.summarizer.Summarize(ctx, text, job.AnalysisType, job.ModelName)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return w.interrupted(ctx, job, log)
	case errors.Is(err, ai.ErrRateLimited):
		return w.retry(ctx, job, log)
	default:
		return w.fail(ctx, job, fmt.Sprintf("summarization failed: %v", err), log)
	}

	ok, err := w.lifecycle.Complete(ctx, job.ID, summaryText)
	if err != nil {
		log.Errorf("[worker] failed to store summary: %v", err)
		return w.fail(ctx, job, fmt.Sprintf("store summary: %v", err), log)
	}
	if !ok {
		return w.canceled(job)
	}

	if err = w.saveSummaryFile(ctx, job, summaryText); err != nil {
		log.Warnf("[worker] failed to save summary file: %v", err)
	}

	return &Result{JobID: job.ID, Outcome: OutcomeCompleted}
}

// checkpoint records progress and reports whether the job is still processing.
func (w *Worker) checkpoint(ctx context.Context, job *model.SummaryJob, progress int, log *logrus.Entry) bool {
	ok, err := w.lifecycle.Progress(ctx, job.ID, progress)
	if err != nil {
		// progress is advisory, only a status change stops the job
		log.Warnf("[worker] failed to record progress %d: %v", progress, err)
		status, serr := w.lifecycle.Status(ctx, job.ID)
		return serr != nil || status == model.JobProcessing
	}
	return ok
}

func (w *Worker) canceled(job *model.SummaryJob) *Result {
	return &Result{JobID: job.ID, Outcome: OutcomeCanceled, Message: summary.CanceledMessage}
}

// fail marks the job failed unless it already left processing, which only a
// cancel does while the worker holds the job.
func (w *Worker) fail(ctx context.Context, job *model.SummaryJob, message string, log *logrus.Entry) *Result {
	log.Errorf("[worker] %s", message)

	ok, err := w.lifecycle.Fail(context.WithoutCancel(ctx), job.ID, message)
	if err != nil {
		log.Errorf("[worker] failed to mark job failed: %v", err)
		return &Result{JobID: job.ID, Outcome: OutcomeFailed, Message: message}
	}
	if !ok {
		return w.canceled(job)
	}
	return &Result{JobID: job.ID, Outcome: OutcomeFailed, Message: message}
}

func (w *Worker) retry(ctx context.Context, job *model.SummaryJob, log *logrus.Entry) *Result {
	if w.cfg.MaxRateLimitRetries > 0 && job.RetryCount >= w.cfg.MaxRateLimitRetries {
		return w.fail(ctx, job, summary.QuotaExhaustedMessage, log)
	}

	log.Warnf("[worker] rate limited, returning job to pending (retry %d)", job.RetryCount+1)
	ok, err := w.lifecycle.Retry(context.WithoutCancel(ctx), job.ID, summary.RateLimitedMessage)
	if err != nil {
		return w.fail(ctx, job, fmt.Sprintf("requeue job: %v", err), log)
	}
	if !ok {
		return w.canceled(job)
	}
	return &Result{JobID: job.ID, Outcome: OutcomeRetried, Message: summary.RateLimitedMessage}
}

// interrupted hands the job back to pending when the worker itself is
// shutting down so the next invocation starts it over.
func (w *Worker) interrupted(ctx context.Context, job *model.SummaryJob, log *logrus.Entry) *Result {
	log.Warn("[worker] interrupted, returning job to pending")
	ok, err := w.lifecycle.Retry(context.WithoutCancel(ctx), job.ID, "Interrupted, the summary will be retried automatically")
	if err != nil {
		log.Errorf("[worker] failed to requeue interrupted job: %v", err)
	}
	if err == nil && !ok {
		return w.canceled(job)
	}
	return &Result{JobID: job.ID, Outcome: OutcomeRetried}
}

// cleanup removes processed uploads and releases the summarizing lock once
// the job will not run again.
func (w *Worker) cleanup(ctx context.Context, job *model.SummaryJob, src source, res *Result, log *logrus.Entry) {
	if res.Outcome == OutcomeRetried {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if src.deletable {
		if err := os.Remove(src.path); err != nil && !os.IsNotExist(err) {
			log.Warnf("[worker] failed to remove %s: %v", src.path, err)
		}
	}

	if job.DocumentID != nil && job.HoldsDocumentLock && w.locks != nil {
		if _, err := w.locks.ReleaseType(ctx, model.ResourceDocument, *job.DocumentID, job.UserID, model.LockSummarizing); err != nil {
			log.Warnf("[worker] failed to release summarizing lock: %v", err)
		}
	}
}

// Drain runs jobs until none is pending, pausing between jobs. It returns the
// number of jobs processed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		res, err := w.RunOnce(ctx)
		if err != nil {
			return processed, err
		}
		if res.Outcome == OutcomeIdle {
			return processed, nil
		}
		processed++

		if !sleep(ctx, w.cfg.Throttle) {
			return processed, ctx.Err()
		}
	}
}

// Loop processes jobs until ctx is done. When idle it waits for a wake up from
// waiter, or polls every PollInterval when waiter is nil.
func (w *Worker) Loop(ctx context.Context, waiter Waiter) error {
	logrus.Infof("[worker] loop started")
	defer logrus.Infof("[worker] loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logrus.Errorf("[worker] %v", err)
			if !sleep(ctx, w.cfg.PollInterval) {
				return nil
			}
			continue
		}

		if res.Outcome != OutcomeIdle {
			if !sleep(ctx, w.cfg.Throttle) {
				return nil
			}
			continue
		}

		if waiter == nil {
			if !sleep(ctx, w.cfg.PollInterval) {
				return nil
			}
			continue
		}

		if _, _, err = waiter.Wait(ctx, w.cfg.PollInterval); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logrus.Warnf("[worker] job queue: %v", err)
			if !sleep(ctx, w.cfg.PollInterval) {
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// truncate cuts text to at most limit runes.
func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

func (w *Worker) isProcessingFile(p string) bool {
	if w.cfg.ProcessingDir == "" {
		return false
	}
	dir, err := filepath.Abs(w.cfg.ProcessingDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == dir
}

func (w *Worker) documentOwner(ctx context.Context, job *model.SummaryJob) uint {
	if job.DocumentID == nil {
		return job.UserID
	}
	doc, err := w.store.GetDocument(ctx, *job.DocumentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.Warnf("[worker] load document %d: %v", *job.DocumentID, err)
		}
		return job.UserID
	}
	return doc.OwnerID
}
