// Package handlers serves the attribution function endpoints: proxy task
// creation, the finalize-transfer write, and the routing engine's assignment
// callback. Each is a stateless request handler; all coordination state lives
// in the relay daemon.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fvmach/BPO-Assignment/internal/audit"
	"github.com/fvmach/BPO-Assignment/internal/engine"
	"github.com/fvmach/BPO-Assignment/internal/models"
)

// EngineAPI is the routing-engine surface the functions need.
type EngineAPI interface {
	CreateTask(ctx context.Context, p engine.CreateTaskParams) (*models.Task, error)
	UpdateTaskAttributes(ctx context.Context, taskSid string, attrs json.RawMessage) (*models.Task, error)
}

// Recorder appends to the handoff audit log. Best-effort: failures are logged
// and never fail the request.
type Recorder interface {
	RecordEvent(ctx context.Context, ev audit.Event) error
}

// AuditReader lists recorded handoff events.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]*audit.Event, error)
}

// Handler serves the /functions endpoints.
type Handler struct {
	Engine   EngineAPI
	Recorder Recorder
	Audit    AuditReader
	Logger   *slog.Logger
}

// result is the common response envelope of every function.
type result struct {
	Success bool   `json:"success"`
	Updated bool   `json:"updated,omitempty"`
	TaskSid string `json:"taskSid,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// --- POST /functions/create-attribution-task ---

type createAttributionRequest struct {
	WorkflowSid    string          `json:"workflowSid"`
	TaskAttributes json.RawMessage `json:"taskAttributes"`
}

// CreateAttributionTask creates one task on the attribution channel with the
// given payload. No server-side dedup: repeated calls create repeated tasks;
// the interceptor is the idempotency boundary.
func (h *Handler) CreateAttributionTask(w http.ResponseWriter, r *http.Request) {
	var req createAttributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "invalid JSON"})
		return
	}
	if req.WorkflowSid == "" || emptyDocument(req.TaskAttributes) {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "Missing workflowSid or taskAttributes"})
		return
	}

	task, err := h.Engine.CreateTask(r.Context(), engine.CreateTaskParams{
		WorkflowSid: req.WorkflowSid,
		TaskChannel: models.AttributionChannel,
		Attributes:  req.TaskAttributes,
	})
	if err != nil {
		h.Logger.Error("attribution task creation failed", "workflow_sid", req.WorkflowSid, "error", err)
		writeJSON(w, http.StatusInternalServerError, result{Success: false, Error: "Task creation failed", Details: err.Error()})
		return
	}

	var payload models.AttributionPayload
	_ = json.Unmarshal(req.TaskAttributes, &payload)
	h.record(r.Context(), audit.Event{
		Kind:               audit.KindAttributionCreated,
		TaskSid:            payload.TransferTask.TaskSid,
		AttributionTaskSid: task.Sid,
		Affiliation:        payload.Affiliation,
	})

	h.Logger.Info("attribution task created", "attribution_task_sid", task.Sid, "affiliation", payload.Affiliation)
	writeJSON(w, http.StatusCreated, result{Success: true, TaskSid: task.Sid})
}

// --- POST /functions/transfer-task ---

type finalizeRequest struct {
	AttributionTaskSid string               `json:"attributionTaskSid"`
	ReceivingWorkerSid string               `json:"receivingWorkerSid"`
	TransferTask       *models.TransferTask `json:"transfer_task"`
}

// TransferTask performs the final handoff write: it stamps the original task
// with the receiving worker, merged over the carried attribute snapshot.
func (h *Handler) TransferTask(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "invalid JSON"})
		return
	}

	var missing []string
	if req.AttributionTaskSid == "" {
		missing = append(missing, "Missing attributionTaskSid")
	}
	if req.ReceivingWorkerSid == "" {
		missing = append(missing, "Missing receivingWorkerSid")
	}
	if req.TransferTask == nil {
		missing = append(missing, "Missing transfer_task")
	} else {
		if req.TransferTask.TaskSid == "" {
			missing = append(missing, "Missing transfer_task.taskSid")
		}
		if emptyDocument(req.TransferTask.Attributes) {
			missing = append(missing, "Missing transfer_task.attributes")
		}
	}
	if len(missing) > 0 {
		h.Logger.Warn("transfer-task validation failed", "details", missing)
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "Validation error", Details: missing})
		return
	}

	merged, err := models.StampTransferTo(req.TransferTask.Attributes, req.ReceivingWorkerSid)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "transfer_task.attributes is not a JSON document", Details: err.Error()})
		return
	}

	updated, err := h.Engine.UpdateTaskAttributes(r.Context(), req.TransferTask.TaskSid, merged)
	if err != nil {
		h.Logger.Error("finalize stamp failed", "task_sid", req.TransferTask.TaskSid, "error", err)
		writeJSON(w, http.StatusInternalServerError, result{Success: false, Error: "Failed to update original task with transferTo", Details: err.Error()})
		return
	}

	h.record(r.Context(), audit.Event{
		Kind:               audit.KindFinalizeStamp,
		TaskSid:            updated.Sid,
		AttributionTaskSid: req.AttributionTaskSid,
		WorkerSid:          req.ReceivingWorkerSid,
	})

	h.Logger.Info("original task stamped via finalize", "task_sid", updated.Sid, "worker_sid", req.ReceivingWorkerSid)
	writeJSON(w, http.StatusOK, result{Success: true, Updated: true, TaskSid: updated.Sid})
}

// --- POST /functions/assignment-callback ---

// assignmentCallback is the engine's native callback shape. TaskAttributes
// arrives as a JSON-stringified document.
type assignmentCallback struct {
	TaskSid        string `json:"TaskSid"`
	WorkerSid      string `json:"WorkerSid"`
	TaskAttributes string `json:"TaskAttributes"`
}

type attributionAttributes struct {
	TransferTask           *models.TransferTask `json:"transfer_task"`
	OriginalTaskAttributes json.RawMessage      `json:"originalTaskAttributes"`
}

// AssignmentCallback fires when the engine assigns an attribution task to a
// worker. It stamps the original task with the assigned worker's identity.
// The write replaces the whole payload, so repeated callbacks for the same
// proxy task are idempotent at the storage level.
func (h *Handler) AssignmentCallback(w http.ResponseWriter, r *http.Request) {
	var cb assignmentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "invalid JSON"})
		return
	}
	if cb.TaskSid == "" || cb.WorkerSid == "" || cb.TaskAttributes == "" {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "Missing TaskSid, WorkerSid, or TaskAttributes in event"})
		return
	}

	var attrs attributionAttributes
	if err := json.Unmarshal([]byte(cb.TaskAttributes), &attrs); err != nil {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "TaskAttributes is not valid JSON", Details: err.Error()})
		return
	}
	if attrs.TransferTask == nil || attrs.TransferTask.TaskSid == "" {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "transferringTaskSid not found in attribution task attributes"})
		return
	}
	if emptyDocument(attrs.OriginalTaskAttributes) {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "originalTaskAttributes not found in attribution task attributes"})
		return
	}

	merged, err := models.StampTransferTo(attrs.OriginalTaskAttributes, cb.WorkerSid)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, result{Success: false, Error: "originalTaskAttributes is not a JSON document", Details: err.Error()})
		return
	}

	if _, err := h.Engine.UpdateTaskAttributes(r.Context(), attrs.TransferTask.TaskSid, merged); err != nil {
		h.Logger.Error("assignment stamp failed", "task_sid", attrs.TransferTask.TaskSid, "error", err)
		writeJSON(w, http.StatusInternalServerError, result{Success: false, Error: "Failed to update transferring task", Details: err.Error()})
		return
	}

	h.record(r.Context(), audit.Event{
		Kind:               audit.KindAssignmentStamp,
		TaskSid:            attrs.TransferTask.TaskSid,
		AttributionTaskSid: cb.TaskSid,
		WorkerSid:          cb.WorkerSid,
	})

	h.Logger.Info("original task stamped via assignment callback",
		"task_sid", attrs.TransferTask.TaskSid, "worker_sid", cb.WorkerSid)
	writeJSON(w, http.StatusOK, result{Success: true, Updated: true})
}

// --- GET /functions/handoff-events ---

// ListHandoffEvents returns the most recent audit entries.
func (h *Handler) ListHandoffEvents(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeJSON(w, http.StatusOK, []*audit.Event{})
		return
	}
	events, err := h.Audit.Recent(r.Context(), 100)
	if err != nil {
		h.Logger.Error("list handoff events failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, result{Success: false, Error: "failed to list handoff events"})
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- helpers ---

func (h *Handler) record(ctx context.Context, ev audit.Event) {
	if h.Recorder == nil {
		return
	}
	if err := h.Recorder.RecordEvent(ctx, ev); err != nil {
		h.Logger.Warn("audit record failed", "kind", ev.Kind, "task_sid", ev.TaskSid, "error", err)
	}
}

// emptyDocument reports whether a raw JSON value is absent or JSON null.
func emptyDocument(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
