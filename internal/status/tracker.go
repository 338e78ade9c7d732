package status

import (
	"sync"
	"time"
)

// Task outcomes
const (
	OutcomePublished = "published"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
)

// Record is the outcome of one finished task
type Record struct {
	TaskID    string    `json:"task_id"`
	Path      string    `json:"path"`
	WorkOrder string    `json:"work_order,omitempty"`
	Date      string    `json:"date,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Snapshot is a point-in-time view of the service
type Snapshot struct {
	StartedAt     time.Time `json:"started_at"`
	InFlight      int       `json:"in_flight"`
	Processed     int       `json:"processed"`
	Aborted       int       `json:"aborted"`
	Failed        int       `json:"failed"`
	LastWorkOrder *Record   `json:"last_work_order,omitempty"`
}

// Tracker keeps counters and the most recent task outcomes in memory
type Tracker struct {
	mu        sync.Mutex
	startedAt time.Time
	inFlight  int
	counts    map[string]int
	recent    []Record
	capacity  int
	last      *Record
}

// NewTracker keeps up to capacity recent records
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 100
	}
	return &Tracker{
		startedAt: time.Now(),
		counts:    map[string]int{},
		capacity:  capacity,
	}
}

// Begin marks a task as in flight
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight++
}

// End records the outcome of a task started with Begin
func (t *Tracker) End(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFlight > 0 {
		t.inFlight--
	}
	t.counts[rec.Outcome]++

	if len(t.recent) == t.capacity {
		t.recent = t.recent[1:]
	}
	t.recent = append(t.recent, rec)

	if rec.Outcome == OutcomePublished {
		last := rec
		t.last = &last
	}
}

// Snapshot returns the current counters
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		StartedAt: t.startedAt,
		InFlight:  t.inFlight,
		Processed: t.counts[OutcomePublished],
		Aborted:   t.counts[OutcomeAborted],
		Failed:    t.counts[OutcomeFailed],
	}
	if t.last != nil {
		last := *t.last
		s.LastWorkOrder = &last
	}
	return s
}

// Recent returns up to limit records, newest first
func (t *Tracker) Recent(limit int) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.recent) {
		limit = len(t.recent)
	}
	out := make([]Record, 0, limit)
	for i := len(t.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.recent[i])
	}
	return out
}
