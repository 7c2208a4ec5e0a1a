package relay

import (
	"context"
	"log/slog"

	"github.com/fvmach/BPO-Assignment/internal/models"
)

// TransferRequest is an outbound "transfer this reservation" action as issued
// by the agent desk host.
type TransferRequest struct {
	ReservationSid string `json:"reservationSid"`
	TargetSid      string `json:"targetSid"`
	Mode           string `json:"mode,omitempty"`
}

// InterceptorEngine is the engine surface the interceptor needs: resolving a
// reservation and the un-intercepted transfer it passes through to.
type InterceptorEngine interface {
	GetReservation(ctx context.Context, reservationSid string) (*models.Reservation, error)
	TransferReservation(ctx context.Context, reservationSid, targetSid, mode string) error
}

// AttributionCreator creates the proxy task carrying the transfer intent.
type AttributionCreator interface {
	CreateAttributionTask(ctx context.Context, workflowSid string, payload models.AttributionPayload) (string, error)
}

// Interceptor captures transfer actions before they reach the engine. Queue
// transfers of regular tasks become attribution tasks instead; everything
// else passes through untouched.
type Interceptor struct {
	Engine      InterceptorEngine
	Functions   AttributionCreator
	Ledger      *Ledger
	Rotator     *Rotator
	WorkflowSid string // workflow that routes attribution tasks to partner queues
	Log         *slog.Logger
}

func NewInterceptor(eng InterceptorEngine, fns AttributionCreator, ledger *Ledger, rotator *Rotator, workflowSid string, log *slog.Logger) *Interceptor {
	if log == nil {
		log = slog.Default()
	}
	return &Interceptor{
		Engine:      eng,
		Functions:   fns,
		Ledger:      ledger,
		Rotator:     rotator,
		WorkflowSid: workflowSid,
		Log:         log,
	}
}

// Transfer handles one transfer action. Ineligible requests (non-queue
// targets, attribution-channel tasks, unresolvable reservations) are passed
// through to the engine unchanged. Eligible requests record the intent, draw
// an affiliation, and create the attribution task; the original reservation
// is left with its current owner. A failed creation is logged and never
// surfaced to the caller — the transfer degrades to "nothing happened" rather
// than leaving the task in limbo.
func (i *Interceptor) Transfer(ctx context.Context, req TransferRequest) error {
	if req.Mode == "" {
		req.Mode = models.TransferModeWarm
	}
	if !models.IsQueueSid(req.TargetSid) {
		return i.passThrough(ctx, req)
	}

	res, err := i.Engine.GetReservation(ctx, req.ReservationSid)
	if err != nil || res.Task == nil {
		i.Log.Warn("could not resolve reservation, passing transfer through",
			"reservation_sid", req.ReservationSid, "error", err)
		return i.passThrough(ctx, req)
	}
	if res.Task.TaskChannel == models.AttributionChannel {
		return i.passThrough(ctx, req)
	}

	snapshot := res.Task.Attributes
	i.Ledger.RecordIntent(models.TransferIntent{
		ReservationSid: res.Sid,
		TaskSid:        res.TaskSid,
		TargetSid:      req.TargetSid,
		Mode:           req.Mode,
		Attributes:     snapshot,
	})

	affiliation := i.Rotator.Next()
	payload := models.AttributionPayload{
		Affiliation: affiliation,
		TransferTask: models.TransferTask{
			Sid:        res.Sid,
			TaskSid:    res.TaskSid,
			TargetSid:  req.TargetSid,
			Attributes: snapshot,
		},
		OriginalTaskAttributes: snapshot,
	}

	taskSid, err := i.Functions.CreateAttributionTask(ctx, i.WorkflowSid, payload)
	if err != nil {
		i.Log.Error("attribution task creation failed",
			"task_sid", res.TaskSid, "target_sid", req.TargetSid, "error", err)
		return nil
	}
	i.Log.Info("attribution task created",
		"attribution_task_sid", taskSid, "task_sid", res.TaskSid,
		"target_sid", req.TargetSid, "affiliation", affiliation)
	return nil
}

func (i *Interceptor) passThrough(ctx context.Context, req TransferRequest) error {
	return i.Engine.TransferReservation(ctx, req.ReservationSid, req.TargetSid, req.Mode)
}
