package summary

import (
	"context"
	"testing"
	"time"

	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_ClaimOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := tester.CreateUser(t, f.store, "ana")
	ben := tester.CreateUser(t, f.store, "ben")

	first := f.submit(t, ana.ID, "a.pdf", model.AnalysisFast)
	f.clock.Advance(time.Second)
	second := f.submit(t, ben.ID, "b.pdf", model.AnalysisFast)

	l := f.service.lifecycle

	job, err := l.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, first.JobID, job.ID)
	assert.Equal(t, model.JobProcessing, job.Status)
	assert.Equal(t, ProgressClaimed, job.Progress)

	job, err = l.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, second.JobID, job.ID)

	job, err = l.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestLifecycle_TerminalStatesAreAbsorbing(t *testing.T) {
	terminate := map[model.JobStatus]func(l *Lifecycle, id uint) (bool, error){
		model.JobCompleted: func(l *Lifecycle, id uint) (bool, error) { return l.Complete(context.Background(), id, "done") },
		model.JobFailed:    func(l *Lifecycle, id uint) (bool, error) { return l.Fail(context.Background(), id, "broken") },
		model.JobCanceled:  func(l *Lifecycle, id uint) (bool, error) { return l.Cancel(context.Background(), id) },
	}

	for status, end := range terminate {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			user := tester.CreateUser(t, f.store, "ana")
			f.submit(t, user.ID, "a.pdf", model.AnalysisFast)
			l := f.service.lifecycle

			job, err := l.Claim(ctx)
			require.NoError(t, err)

			ok, err := end(l, job.ID)
			require.NoError(t, err)
			require.True(t, ok)

			before, err := f.store.GetJob(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, status, before.Status)

			f.clock.Advance(time.Minute)
			for name, move := range map[string]func() (bool, error){
				"complete": func() (bool, error) { return l.Complete(ctx, job.ID, "late summary") },
				"fail":     func() (bool, error) { return l.Fail(ctx, job.ID, "late failure") },
				"cancel":   func() (bool, error) { return l.Cancel(ctx, job.ID) },
				"retry":    func() (bool, error) { return l.Retry(ctx, job.ID, "rate limited") },
				"progress": func() (bool, error) { return l.Progress(ctx, job.ID, 50) },
			} {
				ok, err := move()
				require.NoError(t, err)
				assert.False(t, ok, name)
			}

			after, err := f.store.GetJob(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.SummaryText, after.SummaryText)
			assert.Equal(t, before.ErrorMessage, after.ErrorMessage)
			assert.Equal(t, before.Progress, after.Progress)
		})
	}
}

func TestLifecycle_Retry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := tester.CreateUser(t, f.store, "ana")
	f.submit(t, user.ID, "a.pdf", model.AnalysisFast)
	l := f.service.lifecycle

	job, err := l.Claim(ctx)
	require.NoError(t, err)

	ok, err := l.Retry(ctx, job.ID, "rate limited")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, got.Status)
	assert.Equal(t, ProgressRetry, got.Progress)
	assert.Equal(t, 1, got.RetryCount)

	again, err := l.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 1, again.RetryCount)
}
