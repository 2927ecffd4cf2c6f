package response

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/accesswatch/accesswatch-backend/internal/domain/action"
	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
	domainerrors "github.com/accesswatch/accesswatch-backend/internal/domain/errors"
)

// NewDefaultExecutors builds the standard executor registry in dispatch
// order. identity may be nil; see IdentityClient.
func NewDefaultExecutors(identity IdentityClient, logger *slog.Logger) []Executor {
	return []Executor{
		NewBlockUserExecutor(identity, logger),
		NewRevokeSessionExecutor(identity, logger),
		NewRequireMfaExecutor(identity, logger),
		NewNotifyEmailExecutor(identity, logger),
		NewLogIncidentExecutor(logger),
	}
}

// userExecutor holds the shared shape of the four identity-facing
// executors: simulation short-circuit, nil-client manual directive, or a
// real client call.
type userExecutor struct {
	actionType action.Type
	identity   IdentityClient
	logger     *slog.Logger
	simulated  string // message template for simulation mode
	manual     string // directive logged when no identity client is wired
	invoke     func(ctx context.Context, identity IdentityClient, a *alert.Alert) error
}

func (e *userExecutor) ActionType() action.Type { return e.actionType }

func (e *userExecutor) Execute(ctx context.Context, a *alert.Alert) (Result, error) {
	if a.UserID == "" {
		return Failed("user id is empty", fmt.Sprintf("cannot execute %s without a user id", e.actionType)), nil
	}

	if a.Simulation {
		e.logger.InfoContext(ctx, "simulation: action short-circuited",
			"action", string(e.actionType),
			"user_id", a.UserID,
			"alert_id", a.ID)
		return Successful(
			fmt.Sprintf("[SIMULATION] %s for user %s", e.simulated, a.UserID),
			fmt.Sprintf("alert: %s, severity: %s, risk score: %.2f", a.ID, a.Severity, a.RiskScore)), nil
	}

	if e.identity == nil {
		// No identity-management integration wired yet: surface a
		// manual follow-up directive instead of inventing API calls.
		e.logger.ErrorContext(ctx, "manual action required",
			"action", string(e.actionType),
			"directive", e.manual,
			"user_id", a.UserID,
			"alert_id", a.ID)
		return Successful(
			fmt.Sprintf("%s logged for user %s", e.actionType, a.UserID),
			fmt.Sprintf("alert: %s. MANUAL ACTION REQUIRED: %s", a.ID, e.manual)), nil
	}

	if err := e.invoke(ctx, e.identity, a); err != nil {
		e.logger.ErrorContext(ctx, "identity action failed",
			"action", string(e.actionType),
			"user_id", a.UserID,
			"alert_id", a.ID,
			"error", domainerrors.NewExternalError("identity", err.Error()))
		return Failed(fmt.Sprintf("%s failed for user %s", e.actionType, a.UserID), err.Error()), nil
	}
	return Successful(
		fmt.Sprintf("%s executed for user %s", e.actionType, a.UserID),
		fmt.Sprintf("alert: %s", a.ID)), nil
}

// NewRevokeSessionExecutor invalidates the user's active sessions.
func NewRevokeSessionExecutor(identity IdentityClient, logger *slog.Logger) Executor {
	return &userExecutor{
		actionType: action.TypeRevokeSession,
		identity:   identity,
		logger:     logger,
		simulated:  "sessions revoked",
		manual:     "revoke all active sessions for the user in the identity provider",
		invoke: func(ctx context.Context, identity IdentityClient, a *alert.Alert) error {
			return identity.RevokeSessions(ctx, a.UserID)
		},
	}
}

// NewBlockUserExecutor temporarily disables the user account.
func NewBlockUserExecutor(identity IdentityClient, logger *slog.Logger) Executor {
	return &userExecutor{
		actionType: action.TypeBlockUser,
		identity:   identity,
		logger:     logger,
		simulated:  "user account blocked",
		manual:     "disable the account in the identity provider immediately",
		invoke: func(ctx context.Context, identity IdentityClient, a *alert.Alert) error {
			return identity.DisableUser(ctx, a.UserID)
		},
	}
}

// NewRequireMfaExecutor forces MFA re-registration on next sign-in.
func NewRequireMfaExecutor(identity IdentityClient, logger *slog.Logger) Executor {
	return &userExecutor{
		actionType: action.TypeRequireMfa,
		identity:   identity,
		logger:     logger,
		simulated:  "MFA re-registration required",
		manual:     "require MFA re-registration for the user in the identity provider",
		invoke: func(ctx context.Context, identity IdentityClient, a *alert.Alert) error {
			return identity.RequireMFA(ctx, a.UserID)
		},
	}
}

// NewNotifyEmailExecutor notifies the security team about the alert.
func NewNotifyEmailExecutor(identity IdentityClient, logger *slog.Logger) Executor {
	return &userExecutor{
		actionType: action.TypeNotifyEmail,
		identity:   identity,
		logger:     logger,
		simulated:  "security team notified",
		manual:     "notify the security distribution list about this alert",
		invoke: func(ctx context.Context, identity IdentityClient, a *alert.Alert) error {
			return identity.NotifySecurityTeam(ctx, a)
		},
	}
}

// logIncidentExecutor is the one executor with real behavior: it writes
// the full alert context to the structured log at a level keyed by
// severity, creating the audit trail.
type logIncidentExecutor struct {
	logger *slog.Logger
}

// NewLogIncidentExecutor creates the incident-logging executor.
func NewLogIncidentExecutor(logger *slog.Logger) Executor {
	return &logIncidentExecutor{logger: logger}
}

func (e *logIncidentExecutor) ActionType() action.Type { return action.TypeLogIncident }

func (e *logIncidentExecutor) Execute(ctx context.Context, a *alert.Alert) (Result, error) {
	details, err := json.Marshal(map[string]interface{}{
		"alert_id":         a.ID,
		"event_id":         a.EventID,
		"user_id":          a.UserID,
		"severity":         a.Severity.String(),
		"risk_score":       a.RiskScore,
		"status":           a.Status.String(),
		"detected_at":      a.DetectedAt,
		"country":          a.Country,
		"city":             a.City,
		"ip_address":       a.IPAddress,
		"device_id":        a.DeviceID,
		"detected_signals": json.RawMessage(emptyJSONIfBlank(a.DetectedSignals)),
		"simulation":       a.Simulation,
	})
	if err != nil {
		return Failed(fmt.Sprintf("failed to log incident for alert %s", a.ID), err.Error()), nil
	}

	attrs := []any{
		"alert_id", a.ID,
		"user_id", a.UserID,
		"risk_score", a.RiskScore,
		"details", string(details),
	}
	switch a.Severity {
	case alert.SeverityHigh:
		e.logger.ErrorContext(ctx, "SECURITY INCIDENT [HIGH]", attrs...)
	case alert.SeverityMedium:
		e.logger.WarnContext(ctx, "SECURITY INCIDENT [MEDIUM]", attrs...)
	default:
		e.logger.InfoContext(ctx, "SECURITY INCIDENT [LOW]", attrs...)
	}

	return Successful(
		fmt.Sprintf("incident logged for alert %s", a.ID),
		fmt.Sprintf("severity: %s, risk score: %.2f", a.Severity, a.RiskScore)), nil
}

func emptyJSONIfBlank(s string) string {
	if s == "" {
		return "[]"
	}
	return s
}
