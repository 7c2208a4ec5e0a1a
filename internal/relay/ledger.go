package relay

import (
	"sync"

	"github.com/fvmach/BPO-Assignment/internal/models"
)

// Ledger is the process-local store of in-flight transfer intents plus the
// de-duplication set of handoffs already triggered. Nothing in it survives a
// process restart; an in-progress handoff is lost with the process.
type Ledger struct {
	mu      sync.Mutex
	intents map[string]models.TransferIntent // keyed by reservation SID
	seen    map[string]struct{}              // de-dup keys, taskSid:targetSid
}

func NewLedger() *Ledger {
	return &Ledger{
		intents: make(map[string]models.TransferIntent),
		seen:    make(map[string]struct{}),
	}
}

// RecordIntent stores the intent under its reservation SID, overwriting any
// stale entry for that key.
func (l *Ledger) RecordIntent(intent models.TransferIntent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intents[intent.ReservationSid] = intent
}

// TakeIntent removes and returns the intent for the reservation, if any.
func (l *Ledger) TakeIntent(reservationSid string) (models.TransferIntent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	intent, ok := l.intents[reservationSid]
	if ok {
		delete(l.intents, reservationSid)
	}
	return intent, ok
}

// MarkSeen inserts the de-dup key and reports whether it was newly inserted.
// Callers insert before invoking the transfer, not after, to close the window
// between overlapping update notifications for the same key.
func (l *Ledger) MarkSeen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return false
	}
	l.seen[key] = struct{}{}
	return true
}

// AlreadySeen reports whether the key has been marked.
func (l *Ledger) AlreadySeen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

// ClearSeen removes a de-dup key so a later notification can retry the
// handoff. Used when an attempt aborts before anything was executed.
func (l *Ledger) ClearSeen(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, key)
}
