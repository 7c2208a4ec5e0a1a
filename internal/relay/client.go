package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fvmach/BPO-Assignment/internal/middleware"
	"github.com/fvmach/BPO-Assignment/internal/models"
)

// ErrFunctionFailed is returned when a function answered but reported
// failure (non-2xx or an explicit success:false body).
var ErrFunctionFailed = errors.New("attribution function failed")

// FinalizeRequest is the body sent to the transfer-task function.
type FinalizeRequest struct {
	AttributionTaskSid string              `json:"attributionTaskSid"`
	ReceivingWorkerSid string              `json:"receivingWorkerSid"`
	TransferTask       models.TransferTask `json:"transfer_task"`
}

type functionResult struct {
	Success bool   `json:"success"`
	TaskSid string `json:"taskSid"`
	Error   string `json:"error"`
}

// FunctionsClient calls the server-side attribution functions.
type FunctionsClient struct {
	BaseURL    string
	SigningKey []byte // optional; mints a bearer token per request when set
	HTTPClient *http.Client
	WorkerSid  string
}

func NewFunctionsClient(baseURL, workerSid string, signingKey []byte) *FunctionsClient {
	return &FunctionsClient{
		BaseURL:    baseURL,
		SigningKey: signingKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		WorkerSid:  workerSid,
	}
}

// CreateAttributionTask posts the proxy task creation request and returns the
// new task's SID. Repeated calls create repeated tasks; the interceptor is
// the sole idempotency boundary.
func (c *FunctionsClient) CreateAttributionTask(ctx context.Context, workflowSid string, payload models.AttributionPayload) (string, error) {
	body := struct {
		WorkflowSid    string                    `json:"workflowSid"`
		TaskAttributes models.AttributionPayload `json:"taskAttributes"`
	}{WorkflowSid: workflowSid, TaskAttributes: payload}

	res, err := c.post(ctx, "/functions/create-attribution-task", body)
	if err != nil {
		return "", err
	}
	return res.TaskSid, nil
}

// FinalizeTransfer asks the transfer-task function to stamp the original task
// with the receiving worker. A non-success answer yields ErrFunctionFailed;
// the proxy task stays pending so the agent can retry.
func (c *FunctionsClient) FinalizeTransfer(ctx context.Context, req FinalizeRequest) error {
	_, err := c.post(ctx, "/functions/transfer-task", req)
	return err
}

func (c *FunctionsClient) post(ctx context.Context, path string, in any) (*functionResult, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if len(c.SigningKey) > 0 {
		token, err := middleware.IssueToken(c.SigningKey, c.WorkerSid, 5*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	var res functionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !res.Success {
		if res.Error != "" {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrFunctionFailed, res.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrFunctionFailed, resp.StatusCode)
	}
	return &res, nil
}
