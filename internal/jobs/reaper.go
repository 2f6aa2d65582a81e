package jobs

import (
	"context"
	"os"
	"path/filepath"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/evolearn/studyhub/internal/summary"
	"github.com/sirupsen/logrus"
)

const ProcessingTimedOutMessage = "Processing timed out"

// StaleJobReaper ends jobs nobody will finish and removes uploads no job
// refers to.
type StaleJobReaper struct {
	store     store.JobStore
	lifecycle *summary.Lifecycle
	clock     clock.Clock
	opts      ReaperOptions
}

type ReaperOptions struct {
	ProcessingDir string
	// QuotaWait is how long a rate limited job may wait in pending.
	QuotaWait time.Duration
	// StaleAfter is how long a job may sit in processing without an update.
	// Unreferenced queue files older than this are removed.
	StaleAfter time.Duration
	Schedule   string
}

func NewStaleJobReaper(s store.JobStore, clk clock.Clock, opts ReaperOptions) *StaleJobReaper {
	if opts.QuotaWait <= 0 {
		opts.QuotaWait = time.Hour
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	return &StaleJobReaper{
		store:     s,
		lifecycle: summary.NewLifecycle(s, clk),
		clock:     clk,
		opts:      opts,
	}
}

func (r *StaleJobReaper) Name() string {
	return "stale_job_reaper"
}

func (r *StaleJobReaper) Schedule() string {
	return r.opts.Schedule
}

type ReapReport struct {
	QuotaFailed  int
	TimedOut     int
	FilesRemoved int
}

func (r *StaleJobReaper) Run(ctx context.Context) {
	report, err := r.Reap(ctx)
	if err != nil {
		logrus.Errorf("stale job reaper: %v", err)
	}
	if report.QuotaFailed+report.TimedOut+report.FilesRemoved > 0 {
		logrus.WithFields(logrus.Fields{
			"quota_failed":  report.QuotaFailed,
			"timed_out":     report.TimedOut,
			"files_removed": report.FilesRemoved,
		}).Info("stale jobs reaped")
	}
}

// Reap fails jobs stuck waiting for quota or stuck in processing, then
// removes old processing queue files that no active job uses.
func (r *StaleJobReaper) Reap(ctx context.Context) (ReapReport, error) {
	var report ReapReport
	now := r.clock.Now()
	cutoff := now.Add(-r.opts.StaleAfter)

	pending, err := r.store.ListStaleJobs(ctx, model.JobPending, now.Add(-r.opts.QuotaWait))
	if err != nil {
		return report, err
	}
	for _, job := range pending {
		if job.ErrorMessage != summary.RateLimitedMessage {
			continue
		}
		ok, err := r.lifecycle.FailPending(ctx, job.ID, summary.QuotaExhaustedMessage)
		if err != nil {
			return report, err
		}
		if ok {
			report.QuotaFailed++
		}
	}

	processing, err := r.store.ListStaleJobs(ctx, model.JobProcessing, cutoff)
	if err != nil {
		return report, err
	}
	for _, job := range processing {
		ok, err := r.lifecycle.Fail(ctx, job.ID, ProcessingTimedOutMessage)
		if err != nil {
			return report, err
		}
		if ok {
			report.TimedOut++
		}
	}

	removed, err := r.removeOrphans(ctx, cutoff)
	report.FilesRemoved = removed
	return report, err
}

func (r *StaleJobReaper) removeOrphans(ctx context.Context, cutoff time.Time) (int, error) {
	if r.opts.ProcessingDir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(r.opts.ProcessingDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	files, err := r.store.ListActiveJobFiles(ctx)
	if err != nil {
		return 0, err
	}
	// jobs may refer to the queue from another mount, compare by name
	active := mapset.NewThreadUnsafeSet[string]()
	for _, file := range files {
		active.Add(filepath.Base(file))
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || active.Contains(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		target := filepath.Join(r.opts.ProcessingDir, entry.Name())
		if err = os.Remove(target); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("failed to remove orphan upload %s: %v", target, err)
			continue
		}
		removed++
	}

	return removed, nil
}
