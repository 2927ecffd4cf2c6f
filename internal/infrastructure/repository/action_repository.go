package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accesswatch/accesswatch-backend/internal/domain/action"
)

const actionColumns = `
	id, alert_id, action_type, status,
	executed_at, result, error_message, simulation, created_at`

// ActionRepository persists the response action ledger in PostgreSQL.
type ActionRepository struct {
	pool *pgxpool.Pool
}

// NewActionRepository creates an action repository.
func NewActionRepository(pool *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{pool: pool}
}

// Insert stores a new ledger row.
func (r *ActionRepository) Insert(ctx context.Context, a *action.Action) error {
	query := `
		INSERT INTO response_actions (` + actionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.AlertID, string(a.Type), a.Status.String(),
		a.ExecutedAt, a.Result, a.ErrorMessage, a.Simulation, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert response action: %w", err)
	}
	return nil
}

// UpdateStatus records the terminal outcome of a pending row.
func (r *ActionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status action.Status, result, errorMessage *string) error {
	var executedAt *time.Time
	if status.IsTerminal() {
		now := time.Now().UTC()
		executedAt = &now
	}
	query := `
		UPDATE response_actions
		SET status = $2,
		    executed_at = COALESCE($3, executed_at),
		    result = COALESCE($4, result),
		    error_message = COALESCE($5, error_message)
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, status.String(), executedAt, result, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update response action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPending returns ledger rows still in Pending status, oldest first.
func (r *ActionRepository) GetPending(ctx context.Context, simulation bool) ([]*action.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM response_actions
		WHERE status = $1 AND simulation = $2
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, action.StatusPending.String(), simulation)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending actions: %w", err)
	}
	return scanActions(rows)
}

// GetByAlertID returns all ledger rows for one alert.
func (r *ActionRepository) GetByAlertID(ctx context.Context, alertID uuid.UUID) ([]*action.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM response_actions
		WHERE alert_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions by alert: %w", err)
	}
	return scanActions(rows)
}

func scanActions(rows pgx.Rows) ([]*action.Action, error) {
	defer rows.Close()

	var actions []*action.Action
	for rows.Next() {
		var a action.Action
		var actionType, status string
		err := rows.Scan(
			&a.ID, &a.AlertID, &actionType, &status,
			&a.ExecutedAt, &a.Result, &a.ErrorMessage, &a.Simulation, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response action: %w", err)
		}
		a.Type = action.Type(actionType)
		parsed, err := action.ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("failed to parse action status: %w", err)
		}
		a.Status = parsed
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response actions: %w", err)
	}
	return actions, nil
}
