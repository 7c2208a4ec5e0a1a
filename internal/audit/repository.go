// Package audit persists a best-effort log of handoff events: attribution
// task creations and transferTo stamps from both server paths. The protocol
// never reads this log; it exists for operators reconciling partner
// attribution.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds.
const (
	KindAttributionCreated = "attribution_created"
	KindAssignmentStamp    = "assignment_stamp"
	KindFinalizeStamp      = "finalize_stamp"
)

type Event struct {
	ID                 int64     `json:"id"`
	Kind               string    `json:"kind"`
	TaskSid            string    `json:"task_sid"`
	AttributionTaskSid string    `json:"attribution_task_sid,omitempty"`
	WorkerSid          string    `json:"worker_sid,omitempty"`
	Affiliation        string    `json:"affiliation,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the handoff_events table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS handoff_events (
			id bigserial PRIMARY KEY,
			kind text NOT NULL,
			task_sid text NOT NULL,
			attribution_task_sid text NOT NULL DEFAULT '',
			worker_sid text NOT NULL DEFAULT '',
			affiliation text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (r *Repository) RecordEvent(ctx context.Context, ev Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO handoff_events (kind, task_sid, attribution_task_sid, worker_sid, affiliation)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.Kind, ev.TaskSid, ev.AttributionTaskSid, ev.WorkerSid, ev.Affiliation)
	return err
}

// Recent returns the latest events, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, task_sid, attribution_task_sid, worker_sid, affiliation, created_at
		FROM handoff_events ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.TaskSid, &ev.AttributionTaskSid, &ev.WorkerSid, &ev.Affiliation, &ev.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &ev)
	}
	return list, rows.Err()
}
