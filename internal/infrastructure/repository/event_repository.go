package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

const eventColumns = `
	id, provider_event_id, user_id, user_principal_name, timestamp,
	ip_address, country, city, device_id, device_name, client_app,
	auth_method, conditional_access, outcome,
	simulation, analyzed, created_at`

// EventRepository persists access events in PostgreSQL.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates an event repository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Insert stores one event. Replays of the same provider event ID are
// absorbed silently so ingestion retries stay idempotent.
func (r *EventRepository) Insert(ctx context.Context, evt *event.AccessEvent) error {
	query := `
		INSERT INTO access_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (provider_event_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		evt.ID, evt.ProviderEventID, evt.UserID, evt.UserPrincipalName, evt.Timestamp,
		evt.IPAddress, evt.Country, evt.City, evt.DeviceID, evt.DeviceName, evt.ClientApp,
		evt.AuthMethod, evt.ConditionalAccess, int(evt.Outcome),
		evt.Simulation, evt.Analyzed, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access event: %w", err)
	}
	return nil
}

// GetByID retrieves one event.
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.AccessEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM access_events WHERE id = $1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query access event: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events[0], nil
}

// GetUnanalyzed returns the oldest unanalyzed events, up to limit.
func (r *EventRepository) GetUnanalyzed(ctx context.Context, simulation bool, limit int) ([]*event.AccessEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM access_events
		WHERE analyzed = FALSE AND simulation = $1
		ORDER BY timestamp ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, simulation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unanalyzed events: %w", err)
	}
	return scanEvents(rows)
}

// GetUnanalyzedInRange is GetUnanalyzed restricted to [start, end].
func (r *EventRepository) GetUnanalyzedInRange(ctx context.Context, simulation bool, start, end time.Time, limit int) ([]*event.AccessEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM access_events
		WHERE analyzed = FALSE AND simulation = $1
		  AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, simulation, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unanalyzed events in range: %w", err)
	}
	return scanEvents(rows)
}

// GetByUserSince returns a user's events with timestamp >= since, for
// profile building.
func (r *EventRepository) GetByUserSince(ctx context.Context, userID string, simulation bool, since time.Time) ([]*event.AccessEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM access_events
		WHERE user_id = $1 AND simulation = $2 AND timestamp >= $3
		ORDER BY timestamp DESC
	`
	rows, err := r.pool.Query(ctx, query, userID, simulation, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query user events: %w", err)
	}
	return scanEvents(rows)
}

// MarkAnalyzed flips the analyzed flag. Already-analyzed events are a
// no-op, not an error.
func (r *EventRepository) MarkAnalyzed(ctx context.Context, id uuid.UUID, simulation bool) error {
	query := `
		UPDATE access_events
		SET analyzed = TRUE
		WHERE id = $1 AND simulation = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, simulation)
	if err != nil {
		return fmt.Errorf("failed to mark event analyzed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountFailedAttempts counts a user's failed events since the given time.
func (r *EventRepository) CountFailedAttempts(ctx context.Context, userID string, simulation bool, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM access_events
		WHERE user_id = $1 AND simulation = $2
		  AND outcome = $3 AND timestamp >= $4
	`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, simulation, int(event.OutcomeFailure), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed attempts: %w", err)
	}
	return count, nil
}

func scanEvents(rows pgx.Rows) ([]*event.AccessEvent, error) {
	defer rows.Close()

	var events []*event.AccessEvent
	for rows.Next() {
		var evt event.AccessEvent
		var outcome int
		err := rows.Scan(
			&evt.ID, &evt.ProviderEventID, &evt.UserID, &evt.UserPrincipalName, &evt.Timestamp,
			&evt.IPAddress, &evt.Country, &evt.City, &evt.DeviceID, &evt.DeviceName, &evt.ClientApp,
			&evt.AuthMethod, &evt.ConditionalAccess, &outcome,
			&evt.Simulation, &evt.Analyzed, &evt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access event: %w", err)
		}
		evt.Outcome = event.Outcome(outcome)
		events = append(events, &evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access events: %w", err)
	}
	return events, nil
}
