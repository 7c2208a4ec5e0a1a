package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Assignment statuses owned by the routing engine. This layer never sets one
// directly; it only reads them and calls engine operations.
const (
	TaskStatusPending   = "pending"
	TaskStatusReserved  = "reserved"
	TaskStatusAssigned  = "assigned"
	TaskStatusWrapping  = "wrapping"
	TaskStatusCompleted = "completed"
	TaskStatusCanceled  = "canceled"
)

// AttributionChannel is the task channel reserved for attribution (proxy)
// tasks. Real work items never ride on this channel.
const AttributionChannel = "bpo_assortment"

// SID prefixes used by the routing engine.
const (
	PrefixTask        = "WT"
	PrefixReservation = "WR"
	PrefixWorker      = "WK"
	PrefixQueue       = "WQ"
	PrefixWorkflow    = "WW"
)

// IsQueueSid reports whether sid names a task queue. Queue-shaped targets are
// the only ones eligible for attribution interception.
func IsQueueSid(sid string) bool {
	return strings.HasPrefix(sid, PrefixQueue)
}

// Task is the routing engine's unit of work as seen by this layer.
type Task struct {
	Sid              string          `json:"sid"`
	WorkflowSid      string          `json:"workflowSid,omitempty"`
	TaskChannel      string          `json:"taskChannel"`
	AssignmentStatus string          `json:"assignmentStatus"`
	Attributes       json.RawMessage `json:"attributes"`
	DateCreated      time.Time       `json:"dateCreated"`
}

// Reservation is a single assignment instance of a task to a worker. The
// engine embeds the current task snapshot when returning one.
type Reservation struct {
	Sid       string `json:"sid"`
	TaskSid   string `json:"taskSid"`
	WorkerSid string `json:"workerSid"`
	Status    string `json:"reservationStatus"`
	Task      *Task  `json:"task,omitempty"`
}
