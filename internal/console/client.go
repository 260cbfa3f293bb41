package console

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/identity"
	"github.com/scan-io-git/scanio-agent/internal/models"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
	"github.com/scan-io-git/scanio-agent/pkg/shared/httpclient"
)

// Client is a stateless wrapper around the console HTTP API. All calls
// carry the agent identity explicitly; the client holds no mutable agent
// state of its own.
type Client struct {
	httpc  *resty.Client
	logger hclog.Logger
}

// SystemInfo describes the host the agent runs on; included in the
// registration payload so the console can display it.
type SystemInfo struct {
	Platform string   `json:"platform"`
	Hostname string   `json:"hostname"`
	Scanners []string `json:"scanners"`
}

// RegisterRequest is sent to POST /api/agents/register.
type RegisterRequest struct {
	AgentName    string     `json:"agent_name"`
	Capabilities []string   `json:"capabilities"`
	SystemInfo   SystemInfo `json:"system_info"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	AgentID string `json:"agent_id"`
}

type heartbeatRequest struct {
	AgentID      string   `json:"agent_id"`
	Status       string   `json:"status"`
	CurrentTasks []string `json:"current_tasks,omitempty"`
	Timestamp    string   `json:"timestamp"`
}

type pollResponse struct {
	Tasks []models.Task `json:"tasks"`
}

type statusUpdateRequest struct {
	Status models.TaskStatus `json:"status"`
}

// New creates a console client for the given base URL.
func New(consoleURL string, httpCfg *config.HTTPClient, logger hclog.Logger) *Client {
	httpc := httpclient.InitializeRestyClient(logger, httpCfg)
	httpc.SetBaseURL(consoleURL)
	httpc.SetHeader("Content-Type", "application/json")

	return &Client{
		httpc:  httpc,
		logger: logger,
	}
}

// Register announces a new agent to the console and returns the identity
// the console assigned. It must only be called when the identity store
// reports no registered identity.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*identity.Identity, error) {
	var result registerResponse
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/api/agents/register")
	if err != nil {
		return nil, newRegistrationError(0, err)
	}
	if !resp.IsSuccess() {
		return nil, newRegistrationError(resp.StatusCode(), nil)
	}
	if result.AgentID == "" {
		return nil, newRegistrationError(resp.StatusCode(), fmt.Errorf("response is missing agent_id"))
	}

	c.logger.Info("agent registered", "agentID", result.AgentID, "agentName", req.AgentName)
	return &identity.Identity{
		ID:         result.AgentID,
		Name:       req.AgentName,
		Registered: true,
	}, nil
}

// Heartbeat announces liveness. Failures are reported to the caller but
// are expected to be logged, not acted upon.
func (c *Client) Heartbeat(ctx context.Context, id identity.Identity, status string, currentTasks []string) error {
	body := heartbeatRequest{
		AgentID:      id.ID,
		Status:       status,
		CurrentTasks: currentTasks,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := c.httpc.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/api/agents/%s/heartbeat", id.ID))
	if err != nil {
		return newHeartbeatError(0, err)
	}
	if !resp.IsSuccess() {
		return newHeartbeatError(resp.StatusCode(), nil)
	}
	return nil
}

// PollTasks fetches pending tasks for this agent. No pending work is an
// empty slice, not an error.
func (c *Client) PollTasks(ctx context.Context, id identity.Identity) ([]models.Task, error) {
	var result pollResponse
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetQueryParam("status", string(models.TaskStatusPending)).
		SetResult(&result).
		Get(fmt.Sprintf("/api/agents/%s/tasks", id.ID))
	if err != nil {
		return nil, newPollError(0, err)
	}
	if !resp.IsSuccess() {
		return nil, newPollError(resp.StatusCode(), nil)
	}
	return result.Tasks, nil
}

// UpdateTaskStatus reports a task status transition to the console.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetBody(statusUpdateRequest{Status: status}).
		Patch(fmt.Sprintf("/api/tasks/%s", taskID))
	if err != nil {
		return newUpdateError(0, err)
	}
	if !resp.IsSuccess() {
		return newUpdateError(resp.StatusCode(), nil)
	}
	return nil
}

// SubmitResult delivers one scanner's result bundle for a task.
func (c *Client) SubmitResult(ctx context.Context, taskID string, result *models.ScanResult) error {
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetBody(result).
		Post(fmt.Sprintf("/api/tasks/%s/results", taskID))
	if err != nil {
		return newSubmitError(0, err)
	}
	if !resp.IsSuccess() {
		return newSubmitError(resp.StatusCode(), nil)
	}
	return nil
}
