// Package engine is a thin REST client for the task-routing engine. The
// engine owns all task lifecycle transitions; this layer only reads tasks and
// invokes the engine's public operations on them.
package engine

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

	"github.com/fvmach/BPO-Assignment/internal/models"
)

const requestTimeout = 10 * time.Second

type Client struct {
	BaseURL      string
	WorkspaceSid string
	HTTPClient   *http.Client
}

// NewClient returns a Client with the default request timeout.
func NewClient(baseURL, workspaceSid string) *Client {
	return &Client{
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		WorkspaceSid: workspaceSid,
		HTTPClient:   &http.Client{Timeout: requestTimeout},
	}
}

// CreateTaskParams are the inputs for task creation.
type CreateTaskParams struct {
	WorkflowSid string          `json:"workflowSid"`
	TaskChannel string          `json:"taskChannel"`
	Attributes  json.RawMessage `json:"attributes"`
}

func (c *Client) GetTask(ctx context.Context, taskSid string) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskSid, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) GetReservation(ctx context.Context, reservationSid string) (*models.Reservation, error) {
	var r models.Reservation
	if err := c.do(ctx, http.MethodGet, "/reservations/"+reservationSid, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CreateTask(ctx context.Context, p CreateTaskParams) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", p, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTaskAttributes replaces the task's full attribute document.
func (c *Client) UpdateTaskAttributes(ctx context.Context, taskSid string, attrs json.RawMessage) (*models.Task, error) {
	body := struct {
		Attributes json.RawMessage `json:"attributes"`
	}{Attributes: attrs}
	var t models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+taskSid, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TransferReservation asks the engine to transfer the reservation's task to
// targetSid (worker, queue, or workflow) with the given mode.
func (c *Client) TransferReservation(ctx context.Context, reservationSid, targetSid, mode string) error {
	body := struct {
		TargetSid string `json:"targetSid"`
		Mode      string `json:"mode"`
	}{TargetSid: targetSid, Mode: mode}
	return c.do(ctx, http.MethodPost, "/reservations/"+reservationSid+"/transfer", body, nil)
}

func (c *Client) AcceptReservation(ctx context.Context, reservationSid string) error {
	return c.do(ctx, http.MethodPost, "/reservations/"+reservationSid+"/accept", nil, nil)
}

func (c *Client) CompleteTask(ctx context.Context, taskSid string) error {
	return c.do(ctx, http.MethodPost, "/tasks/"+taskSid+"/complete", nil, nil)
}

func (c *Client) CancelTask(ctx context.Context, taskSid string) error {
	return c.do(ctx, http.MethodPost, "/tasks/"+taskSid+"/cancel", nil, nil)
}

// ListTasks returns tasks on the given channel created before the cutoff.
func (c *Client) ListTasks(ctx context.Context, taskChannel string, createdBefore time.Time) ([]*models.Task, error) {
	q := url.Values{}
	q.Set("taskChannel", taskChannel)
	q.Set("createdBefore", createdBefore.UTC().Format(time.RFC3339))
	var out struct {
		Tasks []*models.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// EventsURL is the websocket endpoint delivering the worker's event stream.
func (c *Client) EventsURL(workerSid string) string {
	ws := c.BaseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/v1/workspaces/" + c.WorkspaceSid + "/workers/" + workerSid + "/events"
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := c.BaseURL + "/v1/workspaces/" + c.WorkspaceSid + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("engine %s %s: status %d: %s", method, path, resp.StatusCode, string(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}
