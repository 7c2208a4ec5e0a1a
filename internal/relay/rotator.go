package relay

import "sync"

// DefaultAffiliations is the fixed partner label set, rotated round-robin.
var DefaultAffiliations = []string{"BPO_A", "BPO_B", "BPO_C"}

// Rotator hands out affiliation labels round-robin. The counter is monotonic
// for the process lifetime and independent of task content.
type Rotator struct {
	mu     sync.Mutex
	labels []string
	next   int
}

// NewRotator returns a Rotator over the given labels, or DefaultAffiliations
// when none are given.
func NewRotator(labels ...string) *Rotator {
	if len(labels) == 0 {
		labels = DefaultAffiliations
	}
	return &Rotator{labels: labels}
}

// Next returns the next label in rotation.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	label := r.labels[r.next%len(r.labels)]
	r.next++
	return label
}
