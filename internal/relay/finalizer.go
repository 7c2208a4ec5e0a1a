package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fvmach/BPO-Assignment/internal/models"
)

// AcceptRequest is an "accept reservation" action issued by the agent desk.
type AcceptRequest struct {
	ReservationSid string `json:"reservationSid"`
}

// FinalizerEngine is the engine surface the acceptance finalizer needs.
type FinalizerEngine interface {
	GetReservation(ctx context.Context, reservationSid string) (*models.Reservation, error)
	AcceptReservation(ctx context.Context, reservationSid string) error
	CompleteTask(ctx context.Context, taskSid string) error
}

// TransferFinalizer performs the final handoff write on the original task.
type TransferFinalizer interface {
	FinalizeTransfer(ctx context.Context, req FinalizeRequest) error
}

// Finalizer intercepts accept actions. Accepting an attribution task first
// finalizes the carried transfer on the original task, then completes the
// acceptance and retires the attribution task.
type Finalizer struct {
	Engine    FinalizerEngine
	Functions TransferFinalizer
	Notifier  Notifier
	WorkerSid string // identity of the accepting party
	Log       *slog.Logger
}

func NewFinalizer(eng FinalizerEngine, fns TransferFinalizer, notifier Notifier, workerSid string, log *slog.Logger) *Finalizer {
	if log == nil {
		log = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	return &Finalizer{
		Engine:    eng,
		Functions: fns,
		Notifier:  notifier,
		WorkerSid: workerSid,
		Log:       log,
	}
}

// Accept handles one accept action. Non-attribution tasks, and attribution
// tasks without a complete transfer_task payload, pass through to the
// engine's native accept. For eligible tasks the ordering is deliberate: a
// finalize failure blocks the accept so the agent can retry, but once the
// accept has succeeded a failure to retire the attribution task is only a
// warning — the user-visible acceptance is never rolled back for cleanup.
func (f *Finalizer) Accept(ctx context.Context, req AcceptRequest) error {
	res, err := f.Engine.GetReservation(ctx, req.ReservationSid)
	if err != nil || res.Task == nil {
		f.Log.Warn("could not resolve reservation, passing accept through",
			"reservation_sid", req.ReservationSid, "error", err)
		return f.Engine.AcceptReservation(ctx, req.ReservationSid)
	}
	if res.Task.TaskChannel != models.AttributionChannel {
		return f.Engine.AcceptReservation(ctx, req.ReservationSid)
	}

	var payload models.AttributionPayload
	if err := json.Unmarshal(res.Task.Attributes, &payload); err != nil ||
		payload.TransferTask.TaskSid == "" || len(payload.TransferTask.Attributes) == 0 {
		return f.Engine.AcceptReservation(ctx, req.ReservationSid)
	}

	if err := f.Functions.FinalizeTransfer(ctx, FinalizeRequest{
		AttributionTaskSid: res.TaskSid,
		ReceivingWorkerSid: f.WorkerSid,
		TransferTask:       payload.TransferTask,
	}); err != nil {
		f.Log.Error("finalize transfer failed, leaving attribution task pending",
			"attribution_task_sid", res.TaskSid, "task_sid", payload.TransferTask.TaskSid, "error", err)
		f.Notifier.Error(ctx, "BPO handoff could not be finalized; please retry accepting the task")
		return err
	}

	if err := f.Engine.AcceptReservation(ctx, req.ReservationSid); err != nil {
		f.Log.Error("accept failed after finalize", "reservation_sid", res.Sid, "error", err)
		return err
	}

	if err := f.Engine.CompleteTask(ctx, res.TaskSid); err != nil {
		// May already be complete from a concurrent path.
		f.Log.Warn("could not complete attribution task",
			"attribution_task_sid", res.TaskSid, "error", err)
	}
	return nil
}
