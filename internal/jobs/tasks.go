package jobs

import (
	"context"

	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/worker"
	"github.com/sirupsen/logrus"
)

// WorkerTask drains pending summary jobs on a schedule.
type WorkerTask struct {
	worker   *worker.Worker
	schedule string
}

func NewWorkerTask(w *worker.Worker, schedule string) *WorkerTask {
	return &WorkerTask{worker: w, schedule: schedule}
}

func (w *WorkerTask) Name() string {
	return "summary_worker"
}

func (w *WorkerTask) Schedule() string {
	return w.schedule
}

func (w *WorkerTask) Run(ctx context.Context) {
	processed, err := w.worker.Drain(ctx)
	if err != nil && ctx.Err() == nil {
		logrus.Errorf("[worker] %v", err)
	}
	if processed > 0 {
		logrus.Infof("[worker] processed %d jobs", processed)
	}
}

// LockSweepTask removes expired locks even when no request touches the lock tables.
type LockSweepTask struct {
	locks    *lock.Manager
	schedule string
}

func NewLockSweepTask(locks *lock.Manager, schedule string) *LockSweepTask {
	return &LockSweepTask{locks: locks, schedule: schedule}
}

func (l *LockSweepTask) Name() string {
	return "lock_sweep"
}

func (l *LockSweepTask) Schedule() string {
	return l.schedule
}

func (l *LockSweepTask) Run(ctx context.Context) {
	removed, err := l.locks.Sweep(ctx)
	if err != nil {
		logrus.Errorf("failed to sweep expired locks: %v", err)
		return
	}
	if removed > 0 {
		logrus.Infof("removed %d expired locks", removed)
	}
}
