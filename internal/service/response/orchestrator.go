package response

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/accesswatch/accesswatch-backend/internal/domain/action"
	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
)

// Stats summarizes one orchestrator sweep.
type Stats struct {
	AlertsProcessed int
	ActionsExecuted int
	ActionsFailed   int
}

// Orchestrator maps pending alerts onto an escalation ladder of response
// actions, dispatches them to executors, and records every outcome in the
// action ledger.
type Orchestrator struct {
	alerts    AlertRepository
	ledger    LedgerRepository
	executors []Executor
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewOrchestrator creates a response orchestrator over an explicit ordered
// executor registry. metrics may be nil.
func NewOrchestrator(alerts AlertRepository, ledger LedgerRepository, executors []Executor, metrics MetricsRecorder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		alerts:    alerts,
		ledger:    ledger,
		executors: executors,
		metrics:   metrics,
		logger:    logger,
	}
}

// ActionsForScore is the escalation ladder: the set of response actions
// warranted by a risk score.
func ActionsForScore(riskScore float64) []action.Type {
	switch {
	case riskScore >= 80:
		return []action.Type{action.TypeBlockUser, action.TypeRevokeSession, action.TypeNotifyEmail, action.TypeLogIncident}
	case riskScore >= 70:
		return []action.Type{action.TypeRevokeSession, action.TypeNotifyEmail, action.TypeLogIncident}
	case riskScore >= 60:
		return []action.Type{action.TypeNotifyEmail, action.TypeLogIncident}
	default:
		return []action.Type{action.TypeLogIncident}
	}
}

// ProcessPendingAlerts sweeps alerts still in New status and dispatches
// response actions for the high-severity ones. Every alert that was swept
// is advanced to Investigating, even when some of its actions failed:
// retry loops are traded for human follow-up.
func (o *Orchestrator) ProcessPendingAlerts(ctx context.Context, simulation bool) (Stats, error) {
	var stats Stats

	pending, err := o.alerts.GetPending(ctx, simulation)
	if err != nil {
		return stats, fmt.Errorf("fetching pending alerts: %w", err)
	}

	// Policy choice: only High-tier alerts get automated response.
	var toProcess []*alert.Alert
	for _, a := range pending {
		if a.Severity == alert.SeverityHigh {
			toProcess = append(toProcess, a)
		}
	}

	if len(toProcess) == 0 {
		o.logger.InfoContext(ctx, "no high severity alerts to process",
			"simulation", simulation)
		return stats, nil
	}

	o.logger.InfoContext(ctx, "processing high severity alerts",
		"count", len(toProcess),
		"simulation", simulation)

	for _, a := range toProcess {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		actions := ActionsForScore(a.RiskScore)
		executed, failed := o.executeActions(ctx, a, actions)
		stats.AlertsProcessed++
		stats.ActionsExecuted += executed
		stats.ActionsFailed += failed

		if err := o.alerts.UpdateStatus(ctx, a.ID, alert.StatusInvestigating, nil, nil); err != nil {
			o.logger.ErrorContext(ctx, "failed to advance alert status",
				"alert_id", a.ID,
				"error", err)
			continue
		}

		o.logger.InfoContext(ctx, "alert processed",
			"alert_id", a.ID,
			"actions_executed", executed,
			"actions_failed", failed,
			"status", alert.StatusInvestigating.String())
	}

	return stats, nil
}

// executeActions runs the ladder for one alert. Each action gets a Pending
// ledger row before its executor is invoked, and exactly one terminal
// update after. A failing action never blocks its siblings.
func (o *Orchestrator) executeActions(ctx context.Context, a *alert.Alert, actions []action.Type) (executed, failed int) {
	for _, actionType := range actions {
		exec := o.executorFor(actionType)

		if exec == nil {
			// Record the gap without invoking anything.
			row := action.NewAction(a.ID, actionType, a.Simulation)
			errMsg := fmt.Sprintf("no executor registered for action type %s", actionType)
			if err := row.MarkFailed(errMsg); err == nil {
				if err := o.ledger.Insert(ctx, row); err != nil {
					o.logger.ErrorContext(ctx, "failed to record unknown action",
						"action", string(actionType),
						"alert_id", a.ID,
						"error", err)
				}
			}
			o.logger.WarnContext(ctx, "no executor for action type",
				"action", string(actionType),
				"alert_id", a.ID)
			failed++
			o.recordOutcome(ctx, actionType, false)
			continue
		}

		row := action.NewAction(a.ID, actionType, a.Simulation)
		if err := o.ledger.Insert(ctx, row); err != nil {
			o.logger.ErrorContext(ctx, "failed to insert ledger row",
				"action", string(actionType),
				"alert_id", a.ID,
				"error", err)
			failed++
			o.recordOutcome(ctx, actionType, false)
			continue
		}

		result, err := exec.Execute(ctx, a)
		if err != nil {
			result = Failed(fmt.Sprintf("%s raised an error", actionType), err.Error())
		}

		if result.Success {
			detail := result.Details
			if detail == "" {
				detail = result.Message
			}
			if err := o.ledger.UpdateStatus(ctx, row.ID, action.StatusExecuted, &detail, nil); err != nil {
				o.logger.ErrorContext(ctx, "failed to update ledger row",
					"action_id", row.ID,
					"error", err)
			}
			executed++
			o.recordOutcome(ctx, actionType, true)
			o.logger.InfoContext(ctx, "action executed",
				"action", string(actionType),
				"alert_id", a.ID,
				"message", result.Message)
		} else {
			errMsg := result.ErrorMessage
			if errMsg == "" {
				errMsg = result.Message
			}
			if err := o.ledger.UpdateStatus(ctx, row.ID, action.StatusFailed, nil, &errMsg); err != nil {
				o.logger.ErrorContext(ctx, "failed to update ledger row",
					"action_id", row.ID,
					"error", err)
			}
			failed++
			o.recordOutcome(ctx, actionType, false)
			o.logger.ErrorContext(ctx, "action failed",
				"action", string(actionType),
				"alert_id", a.ID,
				"message", result.Message,
				"error", errMsg)
		}
	}
	return executed, failed
}

// Run sweeps pending alerts on a fixed interval until the context is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration, simulation bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.logger.InfoContext(ctx, "response loop started",
		"interval", interval.String(),
		"simulation", simulation)

	for {
		select {
		case <-ctx.Done():
			o.logger.InfoContext(ctx, "response loop stopped")
			return
		case <-ticker.C:
			if _, err := o.ProcessPendingAlerts(ctx, simulation); err != nil {
				o.logger.ErrorContext(ctx, "response sweep failed", "error", err)
			}
		}
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, actionType action.Type, success bool) {
	if o.metrics != nil {
		o.metrics.RecordActionOutcome(ctx, string(actionType), success)
	}
}

func (o *Orchestrator) executorFor(actionType action.Type) Executor {
	for _, exec := range o.executors {
		if exec.ActionType() == actionType {
			return exec
		}
	}
	return nil
}
