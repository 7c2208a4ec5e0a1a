package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fvmach/BPO-Assignment/internal/models"
)

// ---------------------------------------------------------------------------
// Shared fakes
// ---------------------------------------------------------------------------

type transferCall struct {
	ReservationSid string
	TargetSid      string
	Mode           string
}

// fakeEngine satisfies InterceptorEngine, WatcherEngine, and FinalizerEngine.
type fakeEngine struct {
	reservations map[string]*models.Reservation

	transfers []transferCall
	accepts   []string
	completes []string
	updates   map[string]json.RawMessage

	getErr      error
	transferErr error
	acceptErr   error
	completeErr error
	updateErr   error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		reservations: make(map[string]*models.Reservation),
		updates:      make(map[string]json.RawMessage),
	}
}

func (f *fakeEngine) GetReservation(_ context.Context, sid string) (*models.Reservation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	res, ok := f.reservations[sid]
	if !ok {
		return nil, fmt.Errorf("reservation %s not found", sid)
	}
	return res, nil
}

func (f *fakeEngine) TransferReservation(_ context.Context, reservationSid, targetSid, mode string) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.transfers = append(f.transfers, transferCall{reservationSid, targetSid, mode})
	return nil
}

func (f *fakeEngine) AcceptReservation(_ context.Context, reservationSid string) error {
	if f.acceptErr != nil {
		return f.acceptErr
	}
	f.accepts = append(f.accepts, reservationSid)
	return nil
}

func (f *fakeEngine) CompleteTask(_ context.Context, taskSid string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completes = append(f.completes, taskSid)
	return nil
}

func (f *fakeEngine) UpdateTaskAttributes(_ context.Context, taskSid string, attrs json.RawMessage) (*models.Task, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates[taskSid] = attrs
	return &models.Task{Sid: taskSid, Attributes: attrs}, nil
}

// fakeFunctions satisfies AttributionCreator and TransferFinalizer.

type createCall struct {
	WorkflowSid string
	Payload     models.AttributionPayload
}

type fakeFunctions struct {
	creates     []createCall
	finalizes   []FinalizeRequest
	createErr   error
	finalizeErr error
}

func (f *fakeFunctions) CreateAttributionTask(_ context.Context, workflowSid string, payload models.AttributionPayload) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.creates = append(f.creates, createCall{workflowSid, payload})
	return fmt.Sprintf("WTattr%02d", len(f.creates)), nil
}

func (f *fakeFunctions) FinalizeTransfer(_ context.Context, req FinalizeRequest) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalizes = append(f.finalizes, req)
	return nil
}

// fakeNotifier records messages.
type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Error(_ context.Context, msg string) {
	f.messages = append(f.messages, msg)
}

// voiceReservation seeds a regular voice-channel reservation.
func voiceReservation(f *fakeEngine, resSid, taskSid string, attrs string) *models.Reservation {
	res := &models.Reservation{
		Sid:       resSid,
		TaskSid:   taskSid,
		WorkerSid: "WKowner",
		Status:    models.TaskStatusReserved,
		Task: &models.Task{
			Sid:              taskSid,
			TaskChannel:      "voice",
			AssignmentStatus: models.TaskStatusAssigned,
			Attributes:       json.RawMessage(attrs),
		},
	}
	f.reservations[resSid] = res
	return res
}
