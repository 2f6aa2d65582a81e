package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evolearn/studyhub/internal/config"
	"github.com/evolearn/studyhub/internal/jobs"
	"github.com/evolearn/studyhub/internal/lock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/share"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/evolearn/studyhub/internal/summary"
	"github.com/evolearn/studyhub/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app     *App
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Storage.Root = filepath.Join(dir, "storage")
	cfg.Storage.ProcessingDir = filepath.Join(dir, "processing_queue")
	cfg.Storage.Backend = config.BlobBackendLocal
	cfg.Auth.Mode = config.AuthModeToken

	db := tester.Setup(t)
	app := &App{Config: cfg, Clock: tester.Clock(), DB: db, Store: store.NewGormStore(db)}
	require.NoError(t, app.wire(context.Background()))

	return &testServer{app: app, handler: NewHandler(app)}
}

func (s *testServer) user(t *testing.T, name string) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: name + "@example.com", AuthToken: "token-" + name}
	require.NoError(t, s.app.Store.CreateUser(context.Background(), user))
	return user
}

func (s *testServer) do(t *testing.T, user *model.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+user.AuthToken)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandler_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHandler_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, nil, http.MethodGet, "/v1/locks/directory/1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthenticated, decodeBody(t, rec)["code"])

	rec = s.do(t, &model.User{AuthToken: "nope"}, http.MethodGet, "/v1/locks/directory/1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Locks(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")
	bob := s.user(t, "bob")

	acquire := map[string]any{"resource_type": "directory", "resource_id": 7, "lock_type": "editing"}

	rec := s.do(t, alice, http.MethodPost, "/v1/locks", acquire)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["acquired"])

	rec = s.do(t, bob, http.MethodPost, "/v1/locks", acquire)
	require.Equal(t, http.StatusLocked, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, CodeResourceLocked, body["code"])
	holder := body["lock"].(map[string]any)
	assert.Equal(t, "alice", holder["holder_name"])
	assert.Equal(t, "alice@example.com", holder["holder_email"])

	rec = s.do(t, bob, http.MethodGet, "/v1/locks/directory/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["locked"])

	rec = s.do(t, bob, http.MethodDelete, "/v1/locks/directory/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["released"])

	rec = s.do(t, alice, http.MethodDelete, "/v1/locks/directory/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["released"])

	rec = s.do(t, bob, http.MethodGet, "/v1/locks/directory/7", nil)
	assert.Equal(t, false, decodeBody(t, rec)["locked"])
}

func TestHandler_LockValidation(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")

	tests := []struct {
		name string
		body any
	}{
		{"unknown resource", map[string]any{"resource_type": "folder", "resource_id": 1, "lock_type": "editing"}},
		{"missing id", map[string]any{"resource_type": "document", "lock_type": "editing"}},
		{"unknown lock type", map[string]any{"resource_type": "document", "resource_id": 1, "lock_type": "reading"}},
		{"ttl too long", map[string]any{"resource_type": "document", "resource_id": 1, "lock_type": "editing", "ttl_seconds": 7200}},
		{"unknown field", map[string]any{"resource_type": "document", "resource_id": 1, "lock_type": "editing", "owner": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, alice, http.MethodPost, "/v1/locks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeInvalidRequest, decodeBody(t, rec)["code"])
		})
	}

	rec := s.do(t, alice, http.MethodPost, "/v1/locks", map[string]any{"resource_type": "document", "lock_type": "editing"})
	assert.Contains(t, decodeBody(t, rec)["error"], "resource_id")

	rec = s.do(t, alice, http.MethodGet, "/v1/locks/folder/1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, alice, http.MethodGet, "/v1/locks/document/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RequestBinding(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"empty body", http.MethodPost, "/v1/directories", nil},
		{"blank directory name", http.MethodPost, "/v1/directories", map[string]any{"name": "  "}},
		{"zero parent", http.MethodPost, "/v1/directories", map[string]any{"name": "a", "parent_id": 0}},
		{"nothing to update", http.MethodPatch, "/v1/directories/1", map[string]any{}},
		{"share node without directory", http.MethodPost, "/v1/shares", map[string]any{"root_directory_id": 1, "name": "s", "nodes": []any{map[string]any{"include_subtree": true}}}},
		{"bad email", http.MethodPost, "/v1/shares/1/users", map[string]any{"email": "not-an-email"}},
		{"unknown role", http.MethodPatch, "/v1/shares/1/users/2", map[string]any{"role": "owner"}},
		{"unknown analysis", http.MethodPost, "/v1/summaries", map[string]any{"file_rel_path": "a.txt", "analysis_type": "summary_long"}},
		{"document and file", http.MethodPost, "/v1/summaries", map[string]any{"file_rel_path": "a.txt", "document_id": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, alice, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, CodeInvalidRequest, decodeBody(t, rec)["code"])
		})
	}
}

func TestHandler_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, nil, http.MethodGet, "/v2/locks", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeBody(t, rec)["code"])
}

func TestHandler_Summaries(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")
	bob := s.user(t, "bob")

	root := s.app.Paths.UserRoot(alice.ID)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "biology"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "biology", "cells.txt"), []byte("cells"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "biology", "genes.txt"), []byte("genes"), 0o644))

	submit := map[string]any{"file_rel_path": "biology/cells.txt", "analysis_type": "summary_fast"}
	rec := s.do(t, alice, http.MethodPost, "/v1/summaries", submit)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	jobID := uint(body["job_id"].(float64))
	assert.Equal(t, "pending", body["status"])

	queued, ok, err := s.app.Queue.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jobID, queued)

	rec = s.do(t, alice, http.MethodPost, "/v1/summaries", submit)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["existing"])
	assert.EqualValues(t, jobID, body["job_id"])

	rec = s.do(t, alice, http.MethodPost, "/v1/summaries", map[string]any{"file_rel_path": "biology/genes.txt"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.EqualValues(t, jobID, decodeBody(t, rec)["existing_job_id"])

	rec = s.do(t, alice, http.MethodPost, "/v1/summaries", map[string]any{"file_rel_path": "biology/missing.txt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, alice, http.MethodPost, "/v1/summaries", map[string]any{"file_rel_path": "../bob/cells.txt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	statusPath := fmt.Sprintf("/v1/summaries/%d/status", jobID)
	rec = s.do(t, alice, http.MethodGet, statusPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decodeBody(t, rec)["status"])

	rec = s.do(t, bob, http.MethodGet, statusPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/v1/summaries/%d", jobID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, alice, http.MethodPost, fmt.Sprintf("/v1/summaries/%d/cancel", jobID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["canceled"])
	assert.Equal(t, "canceled", body["status"])

	rec = s.do(t, alice, http.MethodPost, fmt.Sprintf("/v1/summaries/%d/cancel", jobID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["canceled"])
}

func TestHandler_SummaryUpload(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("dir", "history"))
	require.NoError(t, mw.WriteField("analysis_type", "summary_detailed"))
	part, err := mw.CreateFormFile("file", "rome.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("the roman empire"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/summaries/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice.AuthToken)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	jobID := uint(decodeBody(t, rec)["job_id"].(float64))
	job, err := s.app.Store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "history/rome.txt", job.FileRelPath)
	assert.Equal(t, model.AnalysisDetailed, job.AnalysisType)
	assert.Equal(t, s.app.Config.Storage.ProcessingDir, filepath.Dir(job.FilePath))
	assert.FileExists(t, job.FilePath)
}

func TestHandler_SharesAndHistory(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")
	bob := s.user(t, "bob")

	rec := s.do(t, alice, http.MethodPost, "/v1/directories", map[string]any{"name": "Physics"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dirID := uint(decodeBody(t, rec)["id"].(float64))

	rec = s.do(t, alice, http.MethodPost, "/v1/shares", map[string]any{"root_directory_id": dirID, "name": "Physics"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shareID := uint(decodeBody(t, rec)["id"].(float64))

	usersPath := fmt.Sprintf("/v1/shares/%d/users", shareID)
	rec = s.do(t, alice, http.MethodPost, usersPath, map[string]any{"email": "bob@example.com", "role": "editor"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, alice, http.MethodPost, usersPath, map[string]any{"user_id": bob.ID, "role": "editor"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, bob, http.MethodPost, usersPath, map[string]any{"email": "alice@example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, bob, http.MethodGet, usersPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["users"], 1)

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/v1/directories/%d/permissions?level=edit", dirID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["allowed"])

	rec = s.do(t, bob, http.MethodPatch, fmt.Sprintf("/v1/directories/%d", dirID), map[string]any{"name": "Physics I"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Physics I", decodeBody(t, rec)["name"])

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/v1/shares/%d/history?limit=10", shareID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody(t, rec)
	assert.EqualValues(t, 10, history["limit"])
	types := make([]string, 0)
	for _, e := range history["events"].([]any) {
		types = append(types, e.(map[string]any)["event_type"].(string))
	}
	assert.Contains(t, types, string(model.EventShareCreated))
	assert.Contains(t, types, string(model.EventUserAdded))
	assert.Contains(t, types, string(model.EventDirectoryUpdated))

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/v1/shares/%d/updates", shareID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["has_updates"])

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/v1/shares/%d/updates?since=yesterday", shareID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, alice, http.MethodDelete, fmt.Sprintf("%s/%d", usersPath, bob.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, bob, http.MethodGet, fmt.Sprintf("/v1/shares/%d/history", shareID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_LockReleaseIsLogged(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")

	dir := tester.CreateDirectory(t, s.app.Store, alice.ID, nil, "Chemistry", true)
	sh := tester.Share(t, s.app.Store, alice.ID, dir, 0, model.RoleViewer, true)

	rec := s.do(t, alice, http.MethodPost, "/v1/locks", map[string]any{"resource_type": "directory", "resource_id": dir.ID, "lock_type": "editing"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, alice, http.MethodDelete, fmt.Sprintf("/v1/locks/directory/%d", dir.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	page, err := s.app.Events.History(context.Background(), alice.ID, sh.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, model.EventLockReleased, page.Events[0].EventType)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{invalid("name", "is required"), http.StatusBadRequest, CodeInvalidRequest},
		{fmt.Errorf("wrapped: %w", summary.ErrInvalidAnalysisType), http.StatusBadRequest, CodeInvalidRequest},
		{&permission.DeniedError{UserID: 1, ResourceType: "directory", ResourceID: 2, Required: permission.Edit}, http.StatusForbidden, CodeForbidden},
		{share.ErrNotOwner, http.StatusForbidden, CodeForbidden},
		{&lock.LockedError{Lock: &model.Lock{LockedBy: 3}}, http.StatusLocked, CodeResourceLocked},
		{&summary.RateLimitedError{ExistingJobID: 9}, http.StatusTooManyRequests, CodeTooManyRequests},
		{summary.ErrJobNotFound, http.StatusNotFound, CodeNotFound},
		{share.ErrAlreadyMember, http.StatusConflict, CodeConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, body := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	_, body := errorStatus(&summary.RateLimitedError{ExistingJobID: 9})
	assert.EqualValues(t, 9, body.ExistingJobID)
	_, body = errorStatus(errors.New("disk on fire"))
	assert.NotContains(t, body.Error, "fire")
}

func TestApp_Tasks(t *testing.T) {
	s := newTestServer(t)
	s.app.Config.Job.ReaperSchedule = "0 */10 * * * *"
	s.app.Config.Worker.Schedule = "*/30 * * * * *"

	assert.Len(t, s.app.Tasks(false), 2)

	tasks := s.app.Tasks(true)
	require.Len(t, tasks, 3)
	assert.Equal(t, "summary_worker", tasks[2].Name())

	executor := jobs.NewTaskExecutor(tasks...)
	require.NoError(t, executor.Start(context.Background()))
	executor.Stop()
}

func TestServer_RejectsUnknownWorkerMode(t *testing.T) {
	s := newTestServer(t)

	err := NewServer(s.app, WorkerMode("sometimes")).Start(context.Background())
	assert.ErrorContains(t, err, "unknown worker mode")
}
