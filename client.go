package studyhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the studyhub http api.
type Client interface {
	JobStatus(ctx context.Context, jobID uint) (*JobStatus, error)
	CancelJob(ctx context.Context, jobID uint) (*CancelResult, error)
	InspectLock(ctx context.Context, resourceType string, resourceID uint) (*LockState, error)
	ReleaseLock(ctx context.Context, resourceType string, resourceID uint) (bool, error)
}

type JobStatus struct {
	JobID        uint      `json:"job_id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	AnalysisType string    `json:"analysis_type"`
	Model        string    `json:"model"`
	Summary      string    `json:"summary"`
	Error        string    `json:"error"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CancelResult struct {
	JobID    uint   `json:"job_id"`
	Status   string `json:"status"`
	Canceled bool   `json:"canceled"`
}

type Lock struct {
	ResourceType string    `json:"resource_type"`
	ResourceID   uint      `json:"resource_id"`
	LockedBy     uint      `json:"locked_by"`
	LockType     string    `json:"lock_type"`
	HolderName   string    `json:"holder_name"`
	HolderEmail  string    `json:"holder_email"`
	LockedAt     time.Time `json:"locked_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type LockState struct {
	Locked bool  `json:"locked"`
	Lock   *Lock `json:"lock"`
}

// APIError is a non 2xx answer of the api.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) Client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) JobStatus(ctx context.Context, jobID uint) (*JobStatus, error) {
	var res JobStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/summaries/%d/status", jobID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) CancelJob(ctx context.Context, jobID uint) (*CancelResult, error) {
	var res CancelResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/summaries/%d/cancel", jobID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) InspectLock(ctx context.Context, resourceType string, resourceID uint) (*LockState, error) {
	var res LockState
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/locks/%s/%d", resourceType, resourceID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) ReleaseLock(ctx context.Context, resourceType string, resourceID uint) (bool, error) {
	var res struct {
		Released bool `json:"released"`
	}
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/locks/%s/%d", resourceType, resourceID), nil, &res); err != nil {
		return false, err
	}
	return res.Released, nil
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if err = json.NewDecoder(res.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return apiErr
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
