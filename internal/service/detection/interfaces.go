package detection

import (
	"context"
	"time"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// ProfileRepository builds behavior profiles from the event history.
type ProfileRepository interface {
	// BuildProfile aggregates the user's events in [since, now) into a
	// fresh profile. Empty history yields a zero profile, not an error.
	BuildProfile(ctx context.Context, userID string, simulation bool, since time.Time) (*BehaviorProfile, error)
}

// FailedAttemptCounter counts recent failed access attempts for a user.
type FailedAttemptCounter interface {
	CountFailedAttempts(ctx context.Context, userID string, simulation bool, since time.Time) (int, error)
}

// Signal is an independent scorer producing a [0,1] anomaly score plus a
// trigger flag for one (event, profile) pair. Implementations must be safe
// for concurrent use: the engine fans signals out to a worker pool.
type Signal interface {
	Name() string
	Weight() float64
	Evaluate(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) (SignalResult, error)
}
