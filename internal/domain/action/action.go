package action

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a response action executor.
type Type string

const (
	TypeRevokeSession Type = "RevokeSession"
	TypeBlockUser     Type = "BlockUser"
	TypeRequireMfa    Type = "RequireMfa"
	TypeNotifyEmail   Type = "NotifyEmail"
	TypeLogIncident   Type = "LogIncident"
)

type Status int

const (
	StatusPending Status = iota
	StatusExecuted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusExecuted:
		return "Executed"
	case StatusFailed:
		return "Failed"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire/database representation back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "Pending":
		return StatusPending, nil
	case "Executed":
		return StatusExecuted, nil
	case "Failed":
		return StatusFailed, nil
	default:
		return StatusPending, fmt.Errorf("unknown action status %q", s)
	}
}

// IsTerminal reports whether the ledger row can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusFailed
}

// Action is one row of the response ledger: the lifecycle and outcome of a
// single automated response to an alert. Rows are never deleted and never
// regress from a terminal status.
type Action struct {
	ID      uuid.UUID `json:"id"`
	AlertID uuid.UUID `json:"alert_id"`

	Type   Type   `json:"type"`
	Status Status `json:"status"`

	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	Result       string     `json:"result,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	Simulation bool      `json:"simulation"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAction creates a pending ledger row for an alert.
func NewAction(alertID uuid.UUID, actionType Type, simulation bool) *Action {
	return &Action{
		ID:         uuid.New(),
		AlertID:    alertID,
		Type:       actionType,
		Status:     StatusPending,
		Simulation: simulation,
		CreatedAt:  time.Now().UTC(),
	}
}

// MarkExecuted records a successful execution outcome.
func (a *Action) MarkExecuted(result string) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("action %s already %s", a.ID, a.Status)
	}
	now := time.Now().UTC()
	a.Status = StatusExecuted
	a.Result = result
	a.ExecutedAt = &now
	return nil
}

// MarkFailed records a failed execution outcome.
func (a *Action) MarkFailed(errorMessage string) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("action %s already %s", a.ID, a.Status)
	}
	now := time.Now().UTC()
	a.Status = StatusFailed
	a.ErrorMessage = errorMessage
	a.ExecutedAt = &now
	return nil
}
