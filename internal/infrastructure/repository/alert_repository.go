package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
)

const alertColumns = `
	id, event_id, user_id, user_principal_name,
	severity, risk_score, status, title, description, detected_signals,
	event_timestamp, ip_address, country, city, device_id,
	detected_at, resolved_at, resolved_by, resolution, simulation`

// AlertRepository persists alerts in PostgreSQL.
type AlertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository creates an alert repository.
func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

// Insert stores a new alert.
func (r *AlertRepository) Insert(ctx context.Context, a *alert.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.EventID, a.UserID, a.UserPrincipalName,
		int(a.Severity), a.RiskScore, a.Status.String(), a.Title, a.Description, a.DetectedSignals,
		a.EventTimestamp, a.IPAddress, a.Country, a.City, a.DeviceID,
		a.DetectedAt, a.ResolvedAt, a.ResolvedBy, a.Resolution, a.Simulation,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("alert %s already exists: %w", a.ID, err)
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetByID retrieves one alert.
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, ErrNotFound
	}
	return alerts[0], nil
}

// GetPending returns alerts still in New status, oldest first.
func (r *AlertRepository) GetPending(ctx context.Context, simulation bool) ([]*alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status = $1 AND simulation = $2
		ORDER BY detected_at ASC
	`
	rows, err := r.pool.Query(ctx, query, alert.StatusNew.String(), simulation)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending alerts: %w", err)
	}
	return scanAlerts(rows)
}

// UpdateStatus advances an alert's status, stamping resolution metadata
// when the new status is terminal.
func (r *AlertRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status alert.Status, resolvedBy, resolution *string) error {
	var resolvedAt *time.Time
	if status.IsTerminal() {
		now := time.Now().UTC()
		resolvedAt = &now
	}
	query := `
		UPDATE alerts
		SET status = $2,
		    resolved_by = COALESCE($3, resolved_by),
		    resolution = COALESCE($4, resolution),
		    resolved_at = COALESCE($5, resolved_at)
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, status.String(), resolvedBy, resolution, resolvedAt)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlerts(rows pgx.Rows) ([]*alert.Alert, error) {
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		var a alert.Alert
		var severity int
		var status string
		err := rows.Scan(
			&a.ID, &a.EventID, &a.UserID, &a.UserPrincipalName,
			&severity, &a.RiskScore, &status, &a.Title, &a.Description, &a.DetectedSignals,
			&a.EventTimestamp, &a.IPAddress, &a.Country, &a.City, &a.DeviceID,
			&a.DetectedAt, &a.ResolvedAt, &a.ResolvedBy, &a.Resolution, &a.Simulation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = alert.Severity(severity)
		parsed, err := alert.ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("failed to parse alert status: %w", err)
		}
		a.Status = parsed
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}
