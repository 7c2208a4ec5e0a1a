package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/fvmach/BPO-Assignment/internal/engine"
	"github.com/fvmach/BPO-Assignment/internal/models"
)

// TransferFunc invokes a transfer action. The watcher is wired to the
// interceptor's entrypoint: worker-SID targets are ineligible there, so the
// call falls through to the engine's native transfer.
type TransferFunc func(ctx context.Context, req TransferRequest) error

// WatcherEngine is the engine surface the watcher needs.
type WatcherEngine interface {
	GetReservation(ctx context.Context, reservationSid string) (*models.Reservation, error)
	UpdateTaskAttributes(ctx context.Context, taskSid string, attrs json.RawMessage) (*models.Task, error)
}

// Watcher listens to update notifications for every reservation created in
// this session. A transferTo stamp on a regular task triggers the real warm
// transfer exactly once; the stamp is stripped afterwards so it cannot fire
// again.
type Watcher struct {
	Engine   WatcherEngine
	Ledger   *Ledger
	Transfer TransferFunc
	Log      *slog.Logger

	mu      sync.Mutex
	session map[string]struct{} // reservation SIDs created this session
}

func NewWatcher(eng WatcherEngine, ledger *Ledger, transfer TransferFunc, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		Engine:   eng,
		Ledger:   ledger,
		Transfer: transfer,
		Log:      log,
		session:  make(map[string]struct{}),
	}
}

// HandleEvent dispatches one event from the worker stream. Events arrive on a
// single goroutine; the de-dup insertion below is still the only correctness
// mechanism against duplicate delivery of the same update.
func (w *Watcher) HandleEvent(ctx context.Context, ev engine.Event) {
	switch ev.Type {
	case engine.EventReservationCreated:
		w.mu.Lock()
		w.session[ev.ReservationSid] = struct{}{}
		w.mu.Unlock()
		w.Log.Debug("reservation created", "reservation_sid", ev.ReservationSid, "task_sid", ev.TaskSid)
	case engine.EventTaskUpdated:
		w.handleTaskUpdated(ctx, ev)
	}
}

func (w *Watcher) handleTaskUpdated(ctx context.Context, ev engine.Event) {
	w.mu.Lock()
	_, tracked := w.session[ev.ReservationSid]
	w.mu.Unlock()
	if !tracked {
		return
	}

	target := models.TransferTarget(ev.Attributes)
	if target == "" || ev.TaskChannel == models.AttributionChannel {
		return
	}

	key := models.DedupKey(ev.TaskSid, target)
	// Insert before executing: a duplicate notification racing in behind this
	// one must see the key and stop.
	if !w.Ledger.MarkSeen(key) {
		return
	}

	if ev.AssignmentStatus != models.TaskStatusAssigned {
		// Too early: the stamp landed before the assignment did. Release the
		// key so the status-change notification can retry the handoff.
		w.Ledger.ClearSeen(key)
		w.Log.Warn("transfer stamp seen before task assigned, deferring",
			"task_sid", ev.TaskSid, "status", ev.AssignmentStatus, "target_sid", target)
		return
	}

	res, err := w.Engine.GetReservation(ctx, ev.ReservationSid)
	if err != nil {
		w.Log.Error("could not resolve reservation for stamped task",
			"reservation_sid", ev.ReservationSid, "task_sid", ev.TaskSid, "error", err)
		return
	}

	if err := w.Transfer(ctx, TransferRequest{
		ReservationSid: res.Sid,
		TargetSid:      target,
		Mode:           models.TransferModeWarm,
	}); err != nil {
		// The attempt is consumed either way; the key stays set.
		w.Log.Error("triggered transfer failed",
			"task_sid", ev.TaskSid, "target_sid", target, "error", err)
		return
	}
	w.Log.Info("handoff transfer invoked", "task_sid", ev.TaskSid, "target_sid", target)

	attrs := ev.Attributes
	if res.Task != nil && len(res.Task.Attributes) > 0 {
		attrs = res.Task.Attributes
	}
	stripped, err := models.StripTransferTo(attrs)
	if err == nil {
		_, err = w.Engine.UpdateTaskAttributes(ctx, ev.TaskSid, stripped)
	}
	if err != nil {
		// Non-fatal: the de-dup set already blocks reprocessing in this
		// process lifetime.
		w.Log.Warn("failed to strip transferTo stamp", "task_sid", ev.TaskSid, "error", err)
	}
}
