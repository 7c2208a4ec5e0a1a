package models

import "encoding/json"

// Transfer modes understood by the routing engine.
const (
	TransferModeWarm = "WARM"
	TransferModeCold = "COLD"
)

// TransferToField is the attribute key used as a cross-process signal meaning
// "hand this task to this specific worker".
const TransferToField = "transferTo"

// TransferIntent is an in-flight transfer captured by the interceptor. It is
// held in process memory only and keyed by the reservation SID.
type TransferIntent struct {
	ReservationSid string
	TaskSid        string
	TargetSid      string
	Mode           string
	Attributes     json.RawMessage // payload snapshot at interception time
}

// TransferTask is the transfer intent as embedded in an attribution task's
// payload. Field names are part of the wire contract with the functions.
type TransferTask struct {
	Sid        string          `json:"sid"` // reservation SID
	TaskSid    string          `json:"taskSid"`
	TargetSid  string          `json:"targetSid,omitempty"`
	Attributes json.RawMessage `json:"attributes"`
}

// AttributionPayload is the full payload of an attribution task. The
// snapshot rides both inside transfer_task (consumed at acceptance) and at
// the top level (consumed by the assignment callback, which only sees the
// proxy task's own attribute document).
type AttributionPayload struct {
	Affiliation            string          `json:"affiliation"`
	TransferTask           TransferTask    `json:"transfer_task"`
	OriginalTaskAttributes json.RawMessage `json:"originalTaskAttributes,omitempty"`
}

// DedupKey identifies one (task, receiving target) handoff for at-most-once
// execution. Keyed on both so two targets racing for the same task are
// tracked independently.
func DedupKey(taskSid, targetSid string) string {
	return taskSid + ":" + targetSid
}
