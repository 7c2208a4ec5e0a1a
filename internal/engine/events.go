package engine

import "encoding/json"

// Event types delivered on a worker's event stream.
const (
	EventReservationCreated = "reservation.created"
	EventTaskUpdated        = "task.updated"
)

// Event is one message from the engine's worker event stream. Update events
// carry the task's current attribute document and assignment status.
type Event struct {
	Type             string          `json:"type"`
	ReservationSid   string          `json:"reservationSid,omitempty"`
	TaskSid          string          `json:"taskSid"`
	TaskChannel      string          `json:"taskChannel,omitempty"`
	AssignmentStatus string          `json:"assignmentStatus,omitempty"`
	Attributes       json.RawMessage `json:"attributes,omitempty"`
}
