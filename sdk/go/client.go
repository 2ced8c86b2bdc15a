package sliplinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Slipline HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Stage represents the API stage model (partial).
type Stage struct {
	ID              string  `json:"id"`
	PhaseID         string  `json:"phase_id"`
	ProjectID       string  `json:"project_id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	ProgressPct     float64 `json:"progress_pct"`
	PlannedStart    *string `json:"planned_start_date,omitempty"`
	PlannedEnd      *string `json:"planned_end_date,omitempty"`
	BaselineEnd     *string `json:"baseline_end_date,omitempty"`
	DeviationDays   *int    `json:"deviation_days,omitempty"`
	DeviationStatus *string `json:"deviation_status,omitempty"`
}

// Baseline represents a versioned schedule snapshot.
type Baseline struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	VersionNumber int    `json:"version_number"`
	IsActive      bool   `json:"is_active"`
	SetByID       string `json:"set_by_id"`
	SetAt         string `json:"set_at"`
}

// ChangeRequest represents an approval-gated schedule change.
type ChangeRequest struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	ChangeType string `json:"change_type"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	ApproverID string `json:"approver_id"`
}

// Notification is one row of the notification log.
type Notification struct {
	ID            int64  `json:"id"`
	ProjectID     string `json:"project_id"`
	StakeholderID string `json:"stakeholder_id"`
	Type          string `json:"type"`
	RoleAtTime    string `json:"role_at_time_of_notification"`
	NotifiedAt    string `json:"notified_at"`
}

// DeviationReport aggregates stage deviations against the active baseline.
type DeviationReport struct {
	ProjectID  string  `json:"project_id"`
	OnBaseline int     `json:"on_baseline"`
	Ahead      int     `json:"ahead"`
	Delayed    int     `json:"delayed"`
	Stages     []Stage `json:"stages"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// RecordProgress posts a progress update for a stage.
func (c *Client) RecordProgress(ctx context.Context, stageID, status string, progressPct float64, actualStart, actualEnd *string) (Stage, error) {
	body := map[string]any{
		"status":       status,
		"progress_pct": progressPct,
	}
	if actualStart != nil {
		body["actual_start_date"] = *actualStart
	}
	if actualEnd != nil {
		body["actual_end_date"] = *actualEnd
	}
	var resp Stage
	endpoint := fmt.Sprintf("v0/stages/%s/progress", url.PathEscape(stageID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Stages lists the project's stages.
func (c *Client) Stages(ctx context.Context) ([]Stage, error) {
	var resp []Stage
	err := c.do(ctx, http.MethodGet, c.projectPath("stages"), nil, &resp)
	return resp, err
}

// Deviations fetches the deviation report for the project.
func (c *Client) Deviations(ctx context.Context) (DeviationReport, error) {
	var resp DeviationReport
	err := c.do(ctx, http.MethodGet, c.projectPath("deviations"), nil, &resp)
	return resp, err
}

// Baselines lists the project's baseline versions.
func (c *Client) Baselines(ctx context.Context) ([]Baseline, error) {
	var resp []Baseline
	err := c.do(ctx, http.MethodGet, c.projectPath("baselines"), nil, &resp)
	return resp, err
}

// SubmitChangeRequest files a pending change request.
func (c *Client) SubmitChangeRequest(ctx context.Context, approverID, changeType, reason string, scheduleImpactDays int) (ChangeRequest, error) {
	body := map[string]any{
		"approver_id":          approverID,
		"change_type":          changeType,
		"reason":               reason,
		"schedule_impact_days": scheduleImpactDays,
	}
	var resp ChangeRequest
	err := c.do(ctx, http.MethodPost, c.projectPath("change-requests"), body, &resp)
	return resp, err
}

// ApproveChangeRequest approves a pending change request with comments.
func (c *Client) ApproveChangeRequest(ctx context.Context, changeRequestID, comments string) (ChangeRequest, error) {
	body := map[string]any{"comments": comments}
	var resp ChangeRequest
	endpoint := fmt.Sprintf("v0/change-requests/%s/approve", url.PathEscape(changeRequestID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Notifications lists notifications broadcast for the project.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var resp []Notification
	err := c.do(ctx, http.MethodGet, c.projectPath("notifications"), nil, &resp)
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
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
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

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
