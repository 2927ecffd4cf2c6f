package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accesswatch/accesswatch-backend/internal/service/detection"
)

// ProfileRepository builds behavior profiles directly from the event
// store. Profiles are computed fresh per analysis; they are cheap relative
// to the lookback query and always consistent with the data.
type ProfileRepository struct {
	events *EventRepository
	now    func() time.Time
}

// NewProfileRepository creates a profile repository over the event store.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{
		events: NewEventRepository(pool),
		now:    time.Now,
	}
}

// BuildProfile aggregates the user's events in [since, now) into a fresh
// profile.
func (r *ProfileRepository) BuildProfile(ctx context.Context, userID string, simulation bool, since time.Time) (*detection.BehaviorProfile, error) {
	events, err := r.events.GetByUserSince(ctx, userID, simulation, since)
	if err != nil {
		return nil, fmt.Errorf("loading events for profile: %w", err)
	}
	return detection.BuildProfile(userID, events, since, r.now().UTC()), nil
}
