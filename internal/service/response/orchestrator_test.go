package response

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesswatch/accesswatch-backend/internal/domain/action"
	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
	"github.com/accesswatch/accesswatch-backend/internal/testutil/fixtures"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAlertRepo struct {
	pending    []*alert.Alert
	pendingErr error

	statusUpdates map[uuid.UUID]alert.Status
	updateErr     error
}

func newFakeAlertRepo(pending ...*alert.Alert) *fakeAlertRepo {
	return &fakeAlertRepo{
		pending:       pending,
		statusUpdates: make(map[uuid.UUID]alert.Status),
	}
}

func (f *fakeAlertRepo) GetPending(context.Context, bool) ([]*alert.Alert, error) {
	return f.pending, f.pendingErr
}

func (f *fakeAlertRepo) UpdateStatus(_ context.Context, id uuid.UUID, status alert.Status, _, _ *string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.statusUpdates[id] = status
	return nil
}

type ledgerEntry struct {
	action *action.Action
	status action.Status
	final  bool
}

type fakeLedger struct {
	entries   []*ledgerEntry
	insertErr error
}

func (f *fakeLedger) Insert(_ context.Context, a *action.Action) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, &ledgerEntry{action: a, status: a.Status})
	return nil
}

func (f *fakeLedger) UpdateStatus(_ context.Context, id uuid.UUID, status action.Status, _, _ *string) error {
	for _, e := range f.entries {
		if e.action.ID == id {
			e.status = status
			e.final = true
			return nil
		}
	}
	return errors.New("ledger row not found")
}

func (f *fakeLedger) GetPending(context.Context, bool) ([]*action.Action, error) {
	return nil, nil
}

func (f *fakeLedger) GetByAlertID(context.Context, uuid.UUID) ([]*action.Action, error) {
	return nil, nil
}

func (f *fakeLedger) byType(t action.Type) *ledgerEntry {
	for _, e := range f.entries {
		if e.action.Type == t {
			return e
		}
	}
	return nil
}

type fakeMetrics struct {
	executed int
	failed   int
}

func (f *fakeMetrics) RecordActionOutcome(_ context.Context, _ string, success bool) {
	if success {
		f.executed++
	} else {
		f.failed++
	}
}

type fakeExecutor struct {
	actionType action.Type
	result     Result
	err        error
	calls      int
}

func (f *fakeExecutor) ActionType() action.Type { return f.actionType }

func (f *fakeExecutor) Execute(context.Context, *alert.Alert) (Result, error) {
	f.calls++
	return f.result, f.err
}

func okExecutor(t action.Type) *fakeExecutor {
	return &fakeExecutor{actionType: t, result: Successful("done", "")}
}

func fullRegistry() []Executor {
	return []Executor{
		okExecutor(action.TypeBlockUser),
		okExecutor(action.TypeRevokeSession),
		okExecutor(action.TypeNotifyEmail),
		okExecutor(action.TypeLogIncident),
	}
}

func TestActionsForScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  []action.Type
	}{
		{"critical_tier", 85, []action.Type{action.TypeBlockUser, action.TypeRevokeSession, action.TypeNotifyEmail, action.TypeLogIncident}},
		{"critical_boundary", 80, []action.Type{action.TypeBlockUser, action.TypeRevokeSession, action.TypeNotifyEmail, action.TypeLogIncident}},
		{"high_tier", 75, []action.Type{action.TypeRevokeSession, action.TypeNotifyEmail, action.TypeLogIncident}},
		{"high_boundary", 70, []action.Type{action.TypeRevokeSession, action.TypeNotifyEmail, action.TypeLogIncident}},
		{"elevated_tier", 65, []action.Type{action.TypeNotifyEmail, action.TypeLogIncident}},
		{"elevated_boundary", 60, []action.Type{action.TypeNotifyEmail, action.TypeLogIncident}},
		{"floor", 10, []action.Type{action.TypeLogIncident}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActionsForScore(tt.score))
		})
	}
}

func TestOrchestrator_ProcessPendingAlerts(t *testing.T) {
	ctx := context.Background()

	t.Run("high_alert_runs_full_ladder", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).WithSeverity(alert.SeverityHigh).WithRiskScore(85).Build()
		alerts := newFakeAlertRepo(a)
		ledger := &fakeLedger{}
		recorder := &fakeMetrics{}
		o := NewOrchestrator(alerts, ledger, fullRegistry(), recorder, testLogger())

		stats, err := o.ProcessPendingAlerts(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.AlertsProcessed)
		assert.Equal(t, 4, stats.ActionsExecuted)
		assert.Equal(t, 0, stats.ActionsFailed)
		assert.Equal(t, 4, recorder.executed)
		assert.Zero(t, recorder.failed)
		require.Len(t, ledger.entries, 4)
		for _, e := range ledger.entries {
			assert.Equal(t, action.StatusExecuted, e.status)
			assert.True(t, e.final)
			assert.Equal(t, a.ID, e.action.AlertID)
		}
		assert.Equal(t, alert.StatusInvestigating, alerts.statusUpdates[a.ID])
	})

	t.Run("non_high_alerts_are_skipped", func(t *testing.T) {
		medium := fixtures.NewAlertBuilder(t).WithSeverity(alert.SeverityMedium).WithRiskScore(55).Build()
		low := fixtures.NewAlertBuilder(t).WithSeverity(alert.SeverityLow).WithRiskScore(32).Build()
		alerts := newFakeAlertRepo(medium, low)
		ledger := &fakeLedger{}
		o := NewOrchestrator(alerts, ledger, fullRegistry(), nil, testLogger())

		stats, err := o.ProcessPendingAlerts(ctx, false)
		require.NoError(t, err)

		assert.Zero(t, stats.AlertsProcessed)
		assert.Empty(t, ledger.entries)
		assert.Empty(t, alerts.statusUpdates)
	})

	t.Run("failing_action_does_not_block_siblings", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).WithSeverity(alert.SeverityHigh).WithRiskScore(85).Build()
		alerts := newFakeAlertRepo(a)
		ledger := &fakeLedger{}
		failing := &fakeExecutor{actionType: action.TypeBlockUser, result: Failed("api error", "503")}
		o := NewOrchestrator(alerts, ledger, []Executor{
			failing,
			okExecutor(action.TypeRevokeSession),
			okExecutor(action.TypeNotifyEmail),
			okExecutor(action.TypeLogIncident),
		}, nil, testLogger())

		stats, err := o.ProcessPendingAlerts(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.ActionsExecuted)
		assert.Equal(t, 1, stats.ActionsFailed)
		require.NotNil(t, ledger.byType(action.TypeBlockUser))
		assert.Equal(t, action.StatusFailed, ledger.byType(action.TypeBlockUser).status)
		assert.Equal(t, action.StatusExecuted, ledger.byType(action.TypeRevokeSession).status)
		assert.Equal(t, alert.StatusInvestigating, alerts.statusUpdates[a.ID])
	})

	t.Run("executor_error_is_recorded_as_failure", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).WithSeverity(alert.SeverityHigh).WithRiskScore(65).Build()
		// Risk 65 but severity High: ladder uses the score.
		alerts := newFakeAlertRepo(a)
		ledger := &fakeLedger{}
		erroring := &fakeExecutor{actionType: action.TypeNotifyEmail, err: errors.New("smtp down")}
		o := NewOrchestrator(alerts, ledger, []Executor{
			erroring,
			okExecutor(action.TypeLogIncident),
		}, nil, testLogger())

		stats, err := o.ProcessPendingAlerts(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.ActionsExecuted)
		assert.Equal(t, 1, stats.ActionsFailed)
		assert.Equal(t, action.StatusFailed, ledger.byType(action.TypeNotifyEmail).status)
	})

	t.Run("unknown_action_type_is_recorded_without_invocation", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).WithSeverity(alert.SeverityHigh).WithRiskScore(85).Build()
		alerts := newFakeAlertRepo(a)
		ledger := &fakeLedger{}
		// No BlockUser executor registered.
		o := NewOrchestrator(alerts, ledger, []Executor{
			okExecutor(action.TypeRevokeSession),
			okExecutor(action.TypeNotifyEmail),
			okExecutor(action.TypeLogIncident),
		}, nil, testLogger())

		stats, err := o.ProcessPendingAlerts(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.ActionsExecuted)
		assert.Equal(t, 1, stats.ActionsFailed)
		blocked := ledger.byType(action.TypeBlockUser)
		require.NotNil(t, blocked)
		assert.Equal(t, action.StatusFailed, blocked.status)
		assert.Contains(t, blocked.action.ErrorMessage, "no executor registered")
		assert.Equal(t, alert.StatusInvestigating, alerts.statusUpdates[a.ID])
	})

	t.Run("ledger_insert_failure_skips_execution", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).WithSeverity(alert.SeverityHigh).WithRiskScore(10).Build()
		alerts := newFakeAlertRepo(a)
		ledger := &fakeLedger{insertErr: errors.New("db down")}
		logIncident := okExecutor(action.TypeLogIncident)
		o := NewOrchestrator(alerts, ledger, []Executor{logIncident}, nil, testLogger())

		stats, err := o.ProcessPendingAlerts(ctx, false)
		require.NoError(t, err)

		assert.Zero(t, logIncident.calls)
		assert.Equal(t, 1, stats.ActionsFailed)
	})

	t.Run("repository_failure_aborts_sweep", func(t *testing.T) {
		alerts := newFakeAlertRepo()
		alerts.pendingErr = errors.New("db down")
		o := NewOrchestrator(alerts, &fakeLedger{}, fullRegistry(), nil, testLogger())

		_, err := o.ProcessPendingAlerts(ctx, false)
		require.Error(t, err)
	})

	t.Run("no_pending_alerts_is_clean", func(t *testing.T) {
		o := NewOrchestrator(newFakeAlertRepo(), &fakeLedger{}, fullRegistry(), nil, testLogger())
		stats, err := o.ProcessPendingAlerts(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, stats.AlertsProcessed)
	})
}
