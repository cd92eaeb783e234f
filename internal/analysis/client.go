// Package analysis provides the client for the external analysis
// service that rates correlated events.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// Client calls the analysis service. The service receives the correlated
// events for one target and returns a severity rating with supporting
// analysis.
type Client interface {
	AnalyzeTask(ctx context.Context, task *models.Task, events []*models.Event) (*models.AnalysisResult, error)
	AnalyzeEvent(ctx context.Context, event *models.Event) (*models.AnalysisResult, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new analysis client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// taskRequest is the analysis payload for a correlated task.
type taskRequest struct {
	TaskID     string          `json:"task_id"`
	SourceIP   string          `json:"source_ip"`
	TimeBucket string          `json:"time_bucket"`
	EventCount int             `json:"event_count"`
	Events     []*models.Event `json:"events"`
}

// AnalyzeTask submits a task and its linked events for rating.
func (c *HTTPClient) AnalyzeTask(ctx context.Context, task *models.Task, events []*models.Event) (*models.AnalysisResult, error) {
	req := taskRequest{
		TaskID:     task.ID,
		SourceIP:   task.SourceIP,
		TimeBucket: task.TimeBucket,
		EventCount: len(events),
		Events:     events,
	}
	return c.post(ctx, "/analyze/task", req)
}

// AnalyzeEvent submits a single event for rating.
func (c *HTTPClient) AnalyzeEvent(ctx context.Context, event *models.Event) (*models.AnalysisResult, error) {
	return c.post(ctx, "/analyze/event", event)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) (*models.AnalysisResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}

	if !models.IsValidSeverity(result.SeverityRating) {
		return nil, fmt.Errorf("analysis returned severity %d outside 0-5", result.SeverityRating)
	}

	return &result, nil
}
