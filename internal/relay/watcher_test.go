package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fvmach/BPO-Assignment/internal/engine"
	"github.com/fvmach/BPO-Assignment/internal/models"
)

type recordedTransfers struct {
	calls []TransferRequest
	err   error
}

func (r *recordedTransfers) transfer(_ context.Context, req TransferRequest) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, req)
	return nil
}

func newTestWatcher(eng *fakeEngine) (*Watcher, *recordedTransfers, *Ledger) {
	ledger := NewLedger()
	rec := &recordedTransfers{}
	w := NewWatcher(eng, ledger, rec.transfer, nil)
	return w, rec, ledger
}

func stampedUpdate(resSid, taskSid, target, status string) engine.Event {
	attrs, _ := json.Marshal(map[string]any{"foo": "bar", models.TransferToField: target})
	return engine.Event{
		Type:             engine.EventTaskUpdated,
		ReservationSid:   resSid,
		TaskSid:          taskSid,
		TaskChannel:      "voice",
		AssignmentStatus: status,
		Attributes:       attrs,
	}
}

func trackReservation(w *Watcher, resSid, taskSid string) {
	w.HandleEvent(context.Background(), engine.Event{
		Type:           engine.EventReservationCreated,
		ReservationSid: resSid,
		TaskSid:        taskSid,
	})
}

func TestWatcherTriggersTransferAndStripsStamp(t *testing.T) {
	eng := newFakeEngine()
	voiceReservation(eng, "WR1", "WT1", `{"foo":"bar","transferTo":"WK999"}`)
	w, rec, _ := newTestWatcher(eng)
	trackReservation(w, "WR1", "WT1")

	w.HandleEvent(context.Background(), stampedUpdate("WR1", "WT1", "WK999", models.TaskStatusAssigned))

	if len(rec.calls) != 1 {
		t.Fatalf("got %d transfer calls, want 1", len(rec.calls))
	}
	call := rec.calls[0]
	if call.ReservationSid != "WR1" || call.TargetSid != "WK999" || call.Mode != models.TransferModeWarm {
		t.Fatalf("unexpected transfer call: %+v", call)
	}

	// The stamp is stripped, everything else survives.
	updated, ok := eng.updates["WT1"]
	if !ok {
		t.Fatal("expected an attribute update on WT1")
	}
	attrs, err := models.DecodeAttributes(updated)
	if err != nil {
		t.Fatalf("decode updated attributes: %v", err)
	}
	if _, present := attrs[models.TransferToField]; present {
		t.Fatal("transferTo must be stripped after the handoff")
	}
	if attrs["foo"] != "bar" {
		t.Fatalf("original fields must survive the strip, got %v", attrs)
	}
}

func TestWatcherIdempotentOnDuplicateNotifications(t *testing.T) {
	eng := newFakeEngine()
	voiceReservation(eng, "WR1", "WT1", `{"transferTo":"WK999"}`)
	w, rec, _ := newTestWatcher(eng)
	trackReservation(w, "WR1", "WT1")

	ev := stampedUpdate("WR1", "WT1", "WK999", models.TaskStatusAssigned)
	w.HandleEvent(context.Background(), ev)
	w.HandleEvent(context.Background(), ev)

	if len(rec.calls) != 1 {
		t.Fatalf("duplicate notifications invoked the transfer %d times, want 1", len(rec.calls))
	}
}

func TestWatcherIgnoresUntrackedReservation(t *testing.T) {
	eng := newFakeEngine()
	w, rec, _ := newTestWatcher(eng)

	w.HandleEvent(context.Background(), stampedUpdate("WRother", "WT1", "WK999", models.TaskStatusAssigned))
	if len(rec.calls) != 0 {
		t.Fatal("events for reservations outside this session must be ignored")
	}
}

func TestWatcherIgnoresAttributionChannel(t *testing.T) {
	eng := newFakeEngine()
	w, rec, _ := newTestWatcher(eng)
	trackReservation(w, "WR1", "WT1")

	ev := stampedUpdate("WR1", "WT1", "WK999", models.TaskStatusAssigned)
	ev.TaskChannel = models.AttributionChannel
	w.HandleEvent(context.Background(), ev)
	if len(rec.calls) != 0 {
		t.Fatal("attribution-channel updates must be ignored")
	}
}

func TestWatcherIgnoresUnstampedUpdate(t *testing.T) {
	eng := newFakeEngine()
	w, rec, _ := newTestWatcher(eng)
	trackReservation(w, "WR1", "WT1")

	w.HandleEvent(context.Background(), engine.Event{
		Type:             engine.EventTaskUpdated,
		ReservationSid:   "WR1",
		TaskSid:          "WT1",
		TaskChannel:      "voice",
		AssignmentStatus: models.TaskStatusAssigned,
		Attributes:       json.RawMessage(`{"foo":"bar"}`),
	})
	if len(rec.calls) != 0 {
		t.Fatal("updates without a transferTo stamp must be ignored")
	}
}

func TestWatcherRetriesAfterEarlyStatusAbort(t *testing.T) {
	eng := newFakeEngine()
	voiceReservation(eng, "WR1", "WT1", `{"transferTo":"WK999"}`)
	w, rec, ledger := newTestWatcher(eng)
	trackReservation(w, "WR1", "WT1")

	// Stamp arrives before the task is assigned: abort, but release the key.
	w.HandleEvent(context.Background(), stampedUpdate("WR1", "WT1", "WK999", models.TaskStatusReserved))
	if len(rec.calls) != 0 {
		t.Fatal("transfer must not fire while the task is not assigned")
	}
	if ledger.AlreadySeen(models.DedupKey("WT1", "WK999")) {
		t.Fatal("early abort must release the de-dup key so a retry can land")
	}

	w.HandleEvent(context.Background(), stampedUpdate("WR1", "WT1", "WK999", models.TaskStatusAssigned))
	if len(rec.calls) != 1 {
		t.Fatalf("status-change retry fired %d transfers, want 1", len(rec.calls))
	}
}

func TestWatcherTransferFailureConsumesAttempt(t *testing.T) {
	eng := newFakeEngine()
	voiceReservation(eng, "WR1", "WT1", `{"transferTo":"WK999"}`)
	w, rec, ledger := newTestWatcher(eng)
	rec.err = errors.New("engine down")
	trackReservation(w, "WR1", "WT1")

	ev := stampedUpdate("WR1", "WT1", "WK999", models.TaskStatusAssigned)
	w.HandleEvent(context.Background(), ev)

	if !ledger.AlreadySeen(models.DedupKey("WT1", "WK999")) {
		t.Fatal("a failed transfer attempt is consumed; the key must stay set")
	}

	rec.err = nil
	w.HandleEvent(context.Background(), ev)
	if len(rec.calls) != 0 {
		t.Fatal("consumed attempt must not be retried")
	}
}

func TestWatcherStripFailureIsNonFatal(t *testing.T) {
	eng := newFakeEngine()
	voiceReservation(eng, "WR1", "WT1", `{"transferTo":"WK999"}`)
	eng.updateErr = errors.New("update refused")
	w, rec, _ := newTestWatcher(eng)
	trackReservation(w, "WR1", "WT1")

	w.HandleEvent(context.Background(), stampedUpdate("WR1", "WT1", "WK999", models.TaskStatusAssigned))
	if len(rec.calls) != 1 {
		t.Fatalf("transfer should have fired once, got %d", len(rec.calls))
	}
}
