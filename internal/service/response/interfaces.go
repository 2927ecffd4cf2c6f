package response

import (
	"context"

	"github.com/google/uuid"

	"github.com/accesswatch/accesswatch-backend/internal/domain/action"
	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
)

// AlertRepository is the slice of alert persistence the orchestrator needs.
type AlertRepository interface {
	// GetPending returns alerts still in New status.
	GetPending(ctx context.Context, simulation bool) ([]*alert.Alert, error)
	// UpdateStatus advances an alert's status. Resolution metadata is
	// optional.
	UpdateStatus(ctx context.Context, id uuid.UUID, status alert.Status, resolvedBy, resolution *string) error
}

// LedgerRepository persists the append-only response action ledger.
type LedgerRepository interface {
	Insert(ctx context.Context, a *action.Action) error
	// UpdateStatus records the terminal outcome of a pending row.
	UpdateStatus(ctx context.Context, id uuid.UUID, status action.Status, result, errorMessage *string) error
	GetPending(ctx context.Context, simulation bool) ([]*action.Action, error)
	GetByAlertID(ctx context.Context, alertID uuid.UUID) ([]*action.Action, error)
}

// Result is the outcome reported by an executor.
type Result struct {
	Success      bool
	Message      string
	Details      string
	ErrorMessage string
}

// Successful builds a success result.
func Successful(message, details string) Result {
	return Result{Success: true, Message: message, Details: details}
}

// Failed builds a failure result.
func Failed(message, errorMessage string) Result {
	return Result{Success: false, Message: message, ErrorMessage: errorMessage}
}

// MetricsRecorder receives response telemetry. Implementations must
// tolerate being called once per dispatched action.
type MetricsRecorder interface {
	RecordActionOutcome(ctx context.Context, actionType string, success bool)
}

// Executor performs one type of automated response to an alert.
type Executor interface {
	ActionType() action.Type
	Execute(ctx context.Context, a *alert.Alert) (Result, error)
}

// IdentityClient is the seam to the external identity-management API.
// No implementation exists yet: executors treat a nil client as "log a
// manual follow-up directive". Supplying a real client later turns the
// stub executors into live ones without touching the orchestrator.
type IdentityClient interface {
	RevokeSessions(ctx context.Context, userID string) error
	DisableUser(ctx context.Context, userID string) error
	RequireMFA(ctx context.Context, userID string) error
	NotifySecurityTeam(ctx context.Context, a *alert.Alert) error
}
