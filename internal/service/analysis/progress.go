package analysis

import (
	"sync"
	"time"
)

// Sweep states reported through the progress tracker.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// ProgressSnapshot is a point-in-time copy of the tracker state, safe to
// hand to HTTP handlers.
type ProgressSnapshot struct {
	State           string     `json:"state"`
	TotalEvents     int        `json:"total_events"`
	ProcessedEvents int        `json:"processed_events"`
	AlertsCreated   int        `json:"alerts_created"`
	Simulation      bool       `json:"simulation"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// Progress tracks the state of the current (or most recent) analysis sweep.
// All methods are safe for concurrent use; readers always get a copy.
type Progress struct {
	mu   sync.Mutex
	snap ProgressSnapshot
}

// NewProgress returns an idle tracker.
func NewProgress() *Progress {
	return &Progress{snap: ProgressSnapshot{State: StateIdle}}
}

// Start resets the tracker for a new sweep over total events.
func (p *Progress) Start(total int, simulation bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	p.snap = ProgressSnapshot{
		State:       StateRunning,
		TotalEvents: total,
		Simulation:  simulation,
		StartedAt:   &now,
	}
}

// Update records the running counts.
func (p *Progress) Update(processed, alertsCreated int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.ProcessedEvents = processed
	p.snap.AlertsCreated = alertsCreated
}

// Complete marks the sweep finished. A non-nil err records the failure.
func (p *Progress) Complete(processed, alertsCreated int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	p.snap.ProcessedEvents = processed
	p.snap.AlertsCreated = alertsCreated
	p.snap.CompletedAt = &now
	if err != nil {
		p.snap.State = StateFailed
		p.snap.LastError = err.Error()
		return
	}
	p.snap.State = StateCompleted
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}
