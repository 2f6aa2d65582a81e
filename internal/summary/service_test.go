package summary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/evolearn/studyhub/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu  sync.Mutex
	ids []uint
}

func (n *recordingNotifier) Publish(ctx context.Context, jobID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, jobID)
	return nil
}

type fixture struct {
	store    *store.GormStore
	clock    *clock.StubClock
	locks    *lock.Manager
	notifier *recordingNotifier
	service  *Service
	queueDir string
}

func newFixture(t *testing.T) *fixture {
	s := tester.Store(t)
	clk := tester.Clock()
	locks := lock.NewManager(s, clk, lock.Options{})
	notifier := &recordingNotifier{}
	queueDir := filepath.Join(t.TempDir(), "processing_queue")

	return &fixture{
		store:    s,
		clock:    clk,
		locks:    locks,
		notifier: notifier,
		service:  NewService(s, locks, permission.NewResolver(s), notifier, clk, Options{ProcessingDir: queueDir}),
		queueDir: queueDir,
	}
}

func (f *fixture) submit(t *testing.T, user uint, rel string, analysis model.AnalysisType) *Submission {
	t.Helper()
	sub, err := f.service.Submit(context.Background(), SubmitRequest{UserID: user, FileRelPath: rel, AnalysisType: analysis})
	require.NoError(t, err)
	return sub
}

func TestService_SubmitDedup(t *testing.T) {
	f := newFixture(t)
	user := tester.CreateUser(t, f.store, "ana")

	first := f.submit(t, user.ID, "bio/cells.pdf", model.AnalysisFast)
	assert.False(t, first.Existing)
	assert.Equal(t, model.JobPending, first.Status)

	second := f.submit(t, user.ID, "bio/cells.pdf", model.AnalysisFast)
	assert.True(t, second.Existing)
	assert.Equal(t, first.JobID, second.JobID)

	jobs, err := f.store.ListStaleJobs(context.Background(), model.JobPending, f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	assert.Equal(t, []uint{first.JobID}, f.notifier.ids, "only new jobs are published")
}

func TestService_SubmitRateLimit(t *testing.T) {
	f := newFixture(t)
	user := tester.CreateUser(t, f.store, "ana")
	ctx := context.Background()

	first := f.submit(t, user.ID, "bio/cells.pdf", model.AnalysisFast)

	f.clock.Advance(2 * time.Second)
	_, err := f.service.Submit(ctx, SubmitRequest{UserID: user.ID, FileRelPath: "bio/dna.pdf", AnalysisType: model.AnalysisFast})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	var limited *RateLimitedError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, first.JobID, limited.ExistingJobID)

	f.clock.Advance(4 * time.Second)
	sub, err := f.service.Submit(ctx, SubmitRequest{UserID: user.ID, FileRelPath: "bio/dna.pdf", AnalysisType: model.AnalysisFast})
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, sub.JobID)

	// other users are not affected
	other := tester.CreateUser(t, f.store, "ben")
	f.submit(t, other.ID, "bio/dna.pdf", model.AnalysisFast)
}

func TestService_SubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, SubmitRequest{UserID: 1, FileRelPath: "a.pdf", AnalysisType: "quiz"})
	assert.ErrorIs(t, err, ErrInvalidAnalysisType)

	_, err = f.service.Submit(ctx, SubmitRequest{UserID: 1, FileRelPath: "  ", AnalysisType: model.AnalysisFast})
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestService_SubmitNormalizesModel(t *testing.T) {
	f := newFixture(t)
	user := tester.CreateUser(t, f.store, "ana")

	sub := f.submit(t, user.ID, "bio/cells.pdf", model.AnalysisDetailed)
	job, err := f.store.GetJob(context.Background(), sub.JobID)
	require.NoError(t, err)
	assert.Equal(t, ModelDetailed, job.ModelName)
	assert.Equal(t, 0, job.Progress)
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := tester.CreateUser(t, f.store, "ana")
	other := tester.CreateUser(t, f.store, "ben")
	sub := f.submit(t, owner.ID, "bio/cells.pdf", model.AnalysisFast)

	_, err := f.service.Cancel(ctx, sub.JobID, other.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	res, err := f.service.Cancel(ctx, sub.JobID, owner.ID)
	require.NoError(t, err)
	assert.True(t, res.Canceled)
	assert.Equal(t, model.JobCanceled, res.Status)

	job, err := f.store.GetJob(ctx, sub.JobID)
	require.NoError(t, err)
	assert.Equal(t, CanceledMessage, job.ErrorMessage)

	res, err = f.service.Cancel(ctx, sub.JobID, owner.ID)
	require.NoError(t, err)
	assert.False(t, res.Canceled)
	assert.Equal(t, model.JobCanceled, res.Status)

	_, err = f.service.Cancel(ctx, 4242, owner.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestService_CancelTerminalIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := tester.CreateUser(t, f.store, "ana")
	sub := f.submit(t, owner.ID, "bio/cells.pdf", model.AnalysisFast)

	job, err := f.service.lifecycle.Claim(ctx)
	require.NoError(t, err)
	ok, err := f.service.lifecycle.Complete(ctx, job.ID, "summary")
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.service.Cancel(ctx, sub.JobID, owner.ID)
	require.NoError(t, err)
	assert.False(t, res.Canceled)
	assert.Equal(t, model.JobCompleted, res.Status)
}

func TestService_GetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := tester.CreateUser(t, f.store, "ana")
	other := tester.CreateUser(t, f.store, "ben")

	done := f.submit(t, owner.ID, "a.pdf", model.AnalysisFast)
	job, err := f.service.lifecycle.Claim(ctx)
	require.NoError(t, err)
	_, err = f.service.lifecycle.Complete(ctx, job.ID, "the summary")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	broken := f.submit(t, owner.ID, "b.pdf", model.AnalysisFast)
	job, err = f.service.lifecycle.Claim(ctx)
	require.NoError(t, err)
	_, err = f.service.lifecycle.Fail(ctx, job.ID, "no text")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	waiting := f.submit(t, owner.ID, "c.pdf", model.AnalysisFast)

	tests := []struct {
		name    string
		id      uint
		status  model.JobStatus
		summary string
		errMsg  string
	}{
		{name: "completed", id: done.JobID, status: model.JobCompleted, summary: "the summary"},
		{name: "failed", id: broken.JobID, status: model.JobFailed, errMsg: "no text"},
		{name: "pending", id: waiting.JobID, status: model.JobPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := f.service.GetStatus(ctx, tt.id, owner.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, st.Status)
			assert.Equal(t, tt.summary, st.Summary)
			assert.Equal(t, tt.errMsg, st.Error)
		})
	}

	_, err = f.service.GetStatus(ctx, done.JobID, other.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = f.service.GetDetails(ctx, done.JobID, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	details, err := f.service.GetDetails(ctx, done.JobID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", details.FileRelPath)
}

func TestService_SubmitForCloudDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := tester.CreateUser(t, f.store, "ana")
	editor := tester.CreateUser(t, f.store, "ben")
	viewer := tester.CreateUser(t, f.store, "cai")
	dir := tester.CreateDirectory(t, f.store, owner.ID, nil, "bio", true)
	share := tester.Share(t, f.store, owner.ID, dir, editor.ID, model.RoleEditor, true)
	require.NoError(t, f.store.CreateShareUser(ctx, &model.ShareUser{ShareID: share.ID, UserID: viewer.ID, Role: model.RoleViewer, InvitedAt: tester.Epoch}))
	doc := tester.CreateDocument(t, f.store, owner.ID, dir, "cells.pdf")

	_, err := f.service.SubmitForDocument(ctx, viewer.ID, doc.ID, model.AnalysisFast, "")
	assert.ErrorIs(t, err, permission.ErrPermissionDenied)

	sub, err := f.service.SubmitForDocument(ctx, editor.ID, doc.ID, model.AnalysisFast, "")
	require.NoError(t, err)

	held, err := f.locks.Inspect(ctx, model.ResourceDocument, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, editor.ID, held.LockedBy)
	assert.Equal(t, model.LockSummarizing, held.LockType)

	_, err = f.service.SubmitForDocument(ctx, owner.ID, doc.ID, model.AnalysisFast, "")
	assert.ErrorIs(t, err, lock.ErrLocked, "the summarizing lock keeps others out")

	job, err := f.store.GetJob(ctx, sub.JobID)
	require.NoError(t, err)
	assert.Equal(t, "bio/cells.pdf", job.FileRelPath)
	require.NotNil(t, job.DocumentID)
	assert.Equal(t, doc.ID, *job.DocumentID)
	assert.True(t, job.HoldsDocumentLock)

	_, err = f.service.Cancel(ctx, sub.JobID, editor.ID)
	require.NoError(t, err)
	held, err = f.locks.Inspect(ctx, model.ResourceDocument, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, held, "canceling releases the summarizing lock")
}

func TestService_SubmitForLocalDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := tester.CreateUser(t, f.store, "ana")
	other := tester.CreateUser(t, f.store, "ben")
	doc := tester.CreateDocument(t, f.store, owner.ID, nil, "notes.pdf")

	_, err := f.service.SubmitForDocument(ctx, other.ID, doc.ID, model.AnalysisFast, "")
	assert.ErrorIs(t, err, permission.ErrPermissionDenied)

	sub, err := f.service.SubmitForDocument(ctx, owner.ID, doc.ID, model.AnalysisFast, "")
	require.NoError(t, err)

	held, err := f.locks.Inspect(ctx, model.ResourceDocument, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, held, "local documents are not locked")

	job, err := f.store.GetJob(ctx, sub.JobID)
	require.NoError(t, err)
	assert.False(t, job.HoldsDocumentLock)

	// an edit lock taken meanwhile outlives the canceled job
	ok, err := f.locks.Acquire(ctx, model.ResourceDocument, doc.ID, owner.ID, model.LockEditing, 0)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.service.Cancel(ctx, sub.JobID, owner.ID)
	require.NoError(t, err)
	held, err = f.locks.Inspect(ctx, model.ResourceDocument, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, model.LockEditing, held.LockType)

	_, err = f.service.SubmitForDocument(ctx, owner.ID, 999, model.AnalysisFast, "")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestService_SubmitUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := tester.CreateUser(t, f.store, "ana")

	sub, err := f.service.SubmitUpload(ctx, UploadRequest{
		UserID:       owner.ID,
		DirRelPath:   "bio",
		FileName:     "Cells.PDF",
		Body:         strings.NewReader("%PDF-1.4"),
		AnalysisType: model.AnalysisFast,
	})
	require.NoError(t, err)

	job, err := f.store.GetJob(ctx, sub.JobID)
	require.NoError(t, err)
	assert.Equal(t, "bio/Cells.PDF", job.FileRelPath)
	assert.Equal(t, f.queueDir, filepath.Dir(job.FilePath))
	assert.Equal(t, ".pdf", filepath.Ext(job.FilePath))
	_, err = os.Stat(job.FilePath)
	assert.NoError(t, err)

	again, err := f.service.SubmitUpload(ctx, UploadRequest{
		UserID:       owner.ID,
		DirRelPath:   "bio",
		FileName:     "Cells.PDF",
		Body:         strings.NewReader("%PDF-1.4"),
		AnalysisType: model.AnalysisFast,
	})
	require.NoError(t, err)
	assert.True(t, again.Existing)

	entries, err := os.ReadDir(f.queueDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a deduplicated upload must not stay in the queue")

	_, err = f.service.SubmitUpload(ctx, UploadRequest{UserID: owner.ID, DirRelPath: "../x", FileName: "a.pdf", Body: strings.NewReader(""), AnalysisType: model.AnalysisFast})
	assert.Error(t, err)
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		analysis model.AnalysisType
		in       string
		want     string
	}{
		{analysis: model.AnalysisFast, in: "", want: ModelFast},
		{analysis: model.AnalysisDetailed, in: "", want: ModelDetailed},
		{analysis: model.AnalysisFast, in: "gemini-1.5-flash", want: ModelFast},
		{analysis: model.AnalysisDetailed, in: "gemini-1.5-pro-latest", want: ModelDetailed},
		{analysis: model.AnalysisFast, in: "gemini-2.0-flash", want: "gemini-2.0-flash"},
		{analysis: model.AnalysisDetailed, in: " claude-sonnet-4-5 ", want: "claude-sonnet-4-5"},
	}

	for _, tt := range tests {
		t.Run(string(tt.analysis)+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeModel(tt.analysis, tt.in))
		})
	}
}
