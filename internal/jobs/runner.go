package jobs

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	Name() string
	Run(ctx context.Context)
}

type CronJob interface {
	// Schedule is a cron spec with a seconds field, or an @every expression.
	Schedule() string
	Job
}

// TaskExecutor runs cron jobs. A job whose previous run has not finished is
// skipped for that tick.
type TaskExecutor struct {
	cron            *cron.Cron
	cronJobs        []CronJob
	runningCronJobs mapset.Set[string]
	muCronJobs      sync.Mutex
	wg              sync.WaitGroup
	cancel          context.CancelFunc
}

func NewTaskExecutor(cronJobs ...CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:            cron.New(),
		cronJobs:        cronJobs,
		runningCronJobs: mapset.NewThreadUnsafeSet[string](),
	}
}

// Start schedules every job. Jobs run with a context derived from ctx that
// is canceled by Stop.
func (t *TaskExecutor) Start(ctx context.Context) error {
	ctx, t.cancel = context.WithCancel(ctx)

	for _, job := range t.cronJobs {
		job := job
		err := t.cron.AddFunc(job.Schedule(), func() {
			t.runOnce(ctx, job)
		})
		if err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.Name(), err)
			t.cancel()
			return err
		}
		logrus.Infof("task %s scheduled at %q", job.Name(), job.Schedule())
	}

	t.cron.Start()
	return nil
}

// RunNow runs a job right away, unless it is already running.
func (t *TaskExecutor) RunNow(ctx context.Context, job Job) {
	t.runOnce(ctx, job)
}

func (t *TaskExecutor) runOnce(ctx context.Context, job Job) {
	t.muCronJobs.Lock()
	if t.runningCronJobs.Contains(job.Name()) {
		t.muCronJobs.Unlock()
		logrus.Warnf("task %s is still running, skipping", job.Name())
		return
	}
	t.runningCronJobs.Add(job.Name())
	t.wg.Add(1)
	t.muCronJobs.Unlock()

	defer func() {
		t.muCronJobs.Lock()
		defer t.muCronJobs.Unlock()
		t.runningCronJobs.Remove(job.Name())
		t.wg.Done()
	}()

	if ctx.Err() != nil {
		return
	}
	job.Run(ctx)
}

// Stop unschedules all jobs, cancels running ones and waits for them.
func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}
