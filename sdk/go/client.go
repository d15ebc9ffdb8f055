// Package devpulsesdk is a minimal typed client for the DevPulse HTTP API.
package devpulsesdk

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

// Client is a minimal DevPulse HTTP API client. Identity is carried either
// as a bearer token or the X-User-Id stand-in header.
type Client struct {
	BaseURL     string
	UserID      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, userID string) *Client {
	return &Client{
		BaseURL: baseURL,
		UserID:  userID,
		Timeout: 10 * time.Second,
	}
}

// Developer is the API developer model.
type Developer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	IsNewUser bool   `json:"isNewUser,omitempty"`
}

// DORAMetrics is the rolling 30-day delivery summary.
type DORAMetrics struct {
	DeploymentFrequency int     `json:"deployment_frequency"`
	LeadTimeHours       float64 `json:"lead_time_hours"`
	MTTRHours           float64 `json:"mttr_hours"`
	ChangeFailureRate   float64 `json:"change_failure_rate"`
}

// Recorded is the id+message acknowledgement for write endpoints.
type Recorded struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// StageReport is one workflow stage's dwell-time health.
type StageReport struct {
	Stage      string  `json:"stage"`
	EventCount int     `json:"event_count"`
	AvgHours   float64 `json:"avg_hours"`
	Status     string  `json:"status"`
}

// MergeRate is the merged share of pull requests.
type MergeRate struct {
	Rate   float64 `json:"rate"`
	Total  int     `json:"total"`
	Merged int     `json:"merged"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login resolves (or auto-registers) a developer by email.
func (c *Client) Login(ctx context.Context, email, password string) (Developer, error) {
	body := map[string]any{"email": email, "password": password}
	var resp Developer
	err := c.do(ctx, http.MethodPost, "api/auth/login", body, &resp)
	return resp, err
}

// Metrics returns the DORA metrics for the caller's workspace.
func (c *Client) Metrics(ctx context.Context) (DORAMetrics, error) {
	var resp DORAMetrics
	err := c.do(ctx, http.MethodGet, "api/metrics", nil, &resp)
	return resp, err
}

// RecordDeployment records a deployment. Empty fields take server defaults.
func (c *Client) RecordDeployment(ctx context.Context, environment, status string, durationSeconds int) (Recorded, error) {
	body := map[string]any{}
	if environment != "" {
		body["environment"] = environment
	}
	if status != "" {
		body["status"] = status
	}
	if durationSeconds > 0 {
		body["duration_seconds"] = durationSeconds
	}
	var resp Recorded
	err := c.do(ctx, http.MethodPost, "api/metrics/deployments", body, &resp)
	return resp, err
}

// RecordIncident reports an incident.
func (c *Client) RecordIncident(ctx context.Context, description, severity string) (Recorded, error) {
	body := map[string]any{"description": description}
	if severity != "" {
		body["severity"] = severity
	}
	var resp Recorded
	err := c.do(ctx, http.MethodPost, "api/metrics/incidents", body, &resp)
	return resp, err
}

// MergeRate returns the caller's pull-request merge rate.
func (c *Client) MergeRate(ctx context.Context) (MergeRate, error) {
	var resp MergeRate
	err := c.do(ctx, http.MethodGet, "api/pr/merge-rate", nil, &resp)
	return resp, err
}

// Bottlenecks returns the global stage dwell-time report.
func (c *Client) Bottlenecks(ctx context.Context) ([]StageReport, error) {
	var resp []StageReport
	err := c.do(ctx, http.MethodGet, "api/flow/bottlenecks", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.UserID != "":
		req.Header.Set("X-User-Id", c.UserID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
