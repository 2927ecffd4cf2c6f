package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Alert is the persisted decision artifact produced by the detection
// engine for one qualifying access event.
type Alert struct {
	ID      uuid.UUID `json:"id"`
	EventID uuid.UUID `json:"event_id"`

	UserID            string `json:"user_id,omitempty"`
	UserPrincipalName string `json:"user_principal_name,omitempty"`

	// Classification
	Severity  Severity `json:"severity"`
	RiskScore float64  `json:"risk_score"` // 0-100
	Status    Status   `json:"status"`

	// Explainability
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DetectedSignals string `json:"detected_signals,omitempty"` // JSON array

	// Event context snapshot
	EventTimestamp time.Time `json:"event_timestamp"`
	IPAddress      string    `json:"ip_address,omitempty"`
	Country        string    `json:"country,omitempty"`
	City           string    `json:"city,omitempty"`
	DeviceID       string    `json:"device_id,omitempty"`

	// Resolution metadata
	DetectedAt time.Time  `json:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	Resolution string     `json:"resolution,omitempty"`

	Simulation bool `json:"simulation"`
}

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	default:
		return "unknown"
	}
}

type Status int

const (
	StatusNew Status = iota
	StatusInvestigating
	StatusResolved
	StatusFalsePositive
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusInvestigating:
		return "Investigating"
	case StatusResolved:
		return "Resolved"
	case StatusFalsePositive:
		return "FalsePositive"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire/database representation back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "New":
		return StatusNew, nil
	case "Investigating":
		return StatusInvestigating, nil
	case "Resolved":
		return StatusResolved, nil
	case "FalsePositive":
		return StatusFalsePositive, nil
	default:
		return StatusNew, fmt.Errorf("unknown alert status %q", s)
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// CanTransitionTo enforces New -> Investigating -> {Resolved, FalsePositive}.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusNew:
		return next == StatusInvestigating || next == StatusResolved || next == StatusFalsePositive
	case StatusInvestigating:
		return next == StatusResolved || next == StatusFalsePositive
	default:
		return false
	}
}

// TransitionTo advances the alert status, stamping resolution time when a
// terminal state is reached.
func (a *Alert) TransitionTo(next Status) error {
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid alert status transition %s -> %s", a.Status, next)
	}
	a.Status = next
	if next.IsTerminal() {
		now := time.Now().UTC()
		a.ResolvedAt = &now
	}
	return nil
}

// Resolve marks the alert terminal with operator metadata.
func (a *Alert) Resolve(status Status, resolvedBy, resolution string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("resolve requires a terminal status, got %s", status)
	}
	if err := a.TransitionTo(status); err != nil {
		return err
	}
	a.ResolvedBy = resolvedBy
	a.Resolution = resolution
	return nil
}
