package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// Client is a thin HTTP client for the soclite API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the given server URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// GenerateTasks triggers a correlation run.
func (c *Client) GenerateTasks() (*models.GenerateSummary, error) {
	var summary models.GenerateSummary
	if err := c.do(http.MethodPost, "/api/v1/tasks/generate", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListTasks lists tasks with optional status filter.
func (c *Client) ListTasks(page, limit int, status string) (*models.ListTasksResponse, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	if status != "" {
		q.Set("status", status)
	}

	var resp models.ListTasksResponse
	if err := c.do(http.MethodGet, "/api/v1/tasks?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListJobs lists jobs with optional status filter.
func (c *Client) ListJobs(page, limit int, status string) (*models.ListJobsResponse, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	if status != "" {
		q.Set("status", status)
	}

	var resp models.ListJobsResponse
	if err := c.do(http.MethodGet, "/api/v1/jobs?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetJob retrieves one job.
func (c *Client) GetJob(id string) (*models.Job, error) {
	var job models.Job
	if err := c.do(http.MethodGet, "/api/v1/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// RetryJob retries a failed job.
func (c *Client) RetryJob(id string) (*models.Job, error) {
	var job models.Job
	if err := c.do(http.MethodPost, "/api/v1/jobs/"+id+"/retry", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ResetJob forces a stuck running job back to pending.
func (c *Client) ResetJob(id string) (*models.Job, error) {
	var job models.Job
	if err := c.do(http.MethodPost, "/api/v1/jobs/"+id+"/reset", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CancelJob removes a job that has not started.
func (c *Client) CancelJob(id string) error {
	return c.do(http.MethodDelete, "/api/v1/jobs/"+id, nil, nil)
}

// RaiseMaxAttempts raises a job's retry cap.
func (c *Client) RaiseMaxAttempts(id string, maxAttempts int) (*models.Job, error) {
	body := map[string]int{"max_attempts": maxAttempts}
	var job models.Job
	if err := c.do(http.MethodPost, "/api/v1/jobs/"+id+"/max-attempts", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// PauseJobs pauses the queue.
func (c *Client) PauseJobs() (*models.BulkJobResponse, error) {
	var resp models.BulkJobResponse
	if err := c.do(http.MethodPost, "/api/v1/jobs/pause", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResumeJobs resumes the queue.
func (c *Client) ResumeJobs() (*models.BulkJobResponse, error) {
	var resp models.BulkJobResponse
	if err := c.do(http.MethodPost, "/api/v1/jobs/resume", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearJobs deletes jobs in the given scope (completed, failed, all).
func (c *Client) ClearJobs(scope string) (*models.BulkJobResponse, error) {
	var resp models.BulkJobResponse
	if err := c.do(http.MethodPost, "/api/v1/jobs/clear?scope="+url.QueryEscape(scope), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEscalations lists escalations.
func (c *Client) ListEscalations(page, limit int, pendingOnly bool) (*models.ListEscalationsResponse, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	if pendingOnly {
		q.Set("pending", "true")
	}

	var resp models.ListEscalationsResponse
	if err := c.do(http.MethodGet, "/api/v1/escalations?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryChannel re-runs one escalation channel.
func (c *Client) RetryChannel(id, channel string) (*models.Escalation, error) {
	var esc models.Escalation
	if err := c.do(http.MethodPost, "/api/v1/escalations/"+id+"/retry/"+channel, nil, &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// ListBlocklist lists blocklist entries.
func (c *Client) ListBlocklist(activeOnly bool) ([]*models.BlocklistEntry, error) {
	path := "/api/v1/blocklist"
	if !activeOnly {
		path += "?active=false"
	}

	var resp struct {
		Blocklist []*models.BlocklistEntry `json:"blocklist"`
	}
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Blocklist, nil
}
