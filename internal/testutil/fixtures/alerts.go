package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
)

// AlertBuilder builds test Alert entities
type AlertBuilder struct {
	t *testing.T
	a *alert.Alert
}

// NewAlertBuilder creates a new AlertBuilder with defaults
func NewAlertBuilder(t *testing.T) *AlertBuilder {
	t.Helper()
	return &AlertBuilder{
		t: t,
		a: &alert.Alert{
			ID:                uuid.New(),
			EventID:           uuid.New(),
			UserID:            "user-1",
			UserPrincipalName: "user-1@example.com",
			Severity:          alert.SeverityHigh,
			RiskScore:         85.0,
			Status:            alert.StatusNew,
			Title:             "High risk access detected - user-1@example.com",
			Description:       "3 risk signal(s) detected",
			DetectedSignals:   `[{"signal":"unknown_device","score":1,"detail":"access from unknown device"}]`,
			EventTimestamp:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			IPAddress:         "203.0.113.10",
			Country:           "ES",
			City:              "Madrid",
			DetectedAt:        time.Date(2026, 3, 10, 9, 31, 0, 0, time.UTC),
		},
	}
}

// WithID sets the alert ID
func (b *AlertBuilder) WithID(id uuid.UUID) *AlertBuilder {
	b.a.ID = id
	return b
}

// WithUserID sets the user ID
func (b *AlertBuilder) WithUserID(userID string) *AlertBuilder {
	b.a.UserID = userID
	return b
}

// WithSeverity sets the severity
func (b *AlertBuilder) WithSeverity(severity alert.Severity) *AlertBuilder {
	b.a.Severity = severity
	return b
}

// WithRiskScore sets the risk score
func (b *AlertBuilder) WithRiskScore(score float64) *AlertBuilder {
	b.a.RiskScore = score
	return b
}

// WithStatus sets the status
func (b *AlertBuilder) WithStatus(status alert.Status) *AlertBuilder {
	b.a.Status = status
	return b
}

// WithSimulation flags the alert as simulation data
func (b *AlertBuilder) WithSimulation(simulation bool) *AlertBuilder {
	b.a.Simulation = simulation
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() *alert.Alert {
	b.t.Helper()
	return b.a
}
