package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// Ten failures in the window saturates the score.
const failedAttemptsSaturation = 10.0

// failedAttemptsSignal detects bursts of failed attempts in a sliding
// window (brute force), and the credential-compromise pattern of a success
// immediately following such a burst. It is the only signal that is not
// suppressed under cold start.
type failedAttemptsSignal struct {
	cfg     *Config
	counter FailedAttemptCounter
	now     func() time.Time
}

// NewFailedAttemptsSignal creates the failed-attempts signal backed by the
// given counter.
func NewFailedAttemptsSignal(cfg *Config, counter FailedAttemptCounter) Signal {
	return &failedAttemptsSignal{cfg: cfg, counter: counter, now: time.Now}
}

func (s *failedAttemptsSignal) Name() string    { return "failed_attempts" }
func (s *failedAttemptsSignal) Weight() float64 { return s.cfg.Weights.FailedAttempts }

func (s *failedAttemptsSignal) Evaluate(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) (SignalResult, error) {
	if evt.UserID == "" {
		return SignalResult{
			Signal:      s.Name(),
			Description: "user id not available",
		}, nil
	}

	window := time.Duration(s.cfg.FailedAttemptsWindowMinutes) * time.Minute
	since := s.now().UTC().Add(-window)

	failedCount, err := s.counter.CountFailedAttempts(ctx, evt.UserID, evt.Simulation, since)
	if err != nil {
		return SignalResult{}, fmt.Errorf("counting failed attempts for user %s: %w", evt.UserID, err)
	}

	if failedCount == 0 {
		return SignalResult{
			Signal:      s.Name(),
			Description: fmt.Sprintf("no failed attempts in the last %d minutes", s.cfg.FailedAttemptsWindowMinutes),
		}, nil
	}

	if failedCount < s.cfg.FailedAttemptsCount {
		return SignalResult{
			Signal:      s.Name(),
			Score:       0.3,
			Description: fmt.Sprintf("%d failed attempt(s) in the last %d minutes", failedCount, s.cfg.FailedAttemptsWindowMinutes),
		}, nil
	}

	// A success right after a failure burst is the classic sign of a
	// compromised credential.
	if evt.Outcome == event.OutcomeSuccess {
		return SignalResult{
			Signal:      s.Name(),
			Score:       1.0,
			Triggered:   true,
			Description: fmt.Sprintf("successful access after %d failed attempts in %d minutes (possible credential compromise)", failedCount, s.cfg.FailedAttemptsWindowMinutes),
		}, nil
	}

	score := float64(failedCount) / failedAttemptsSaturation
	if score > 1.0 {
		score = 1.0
	}

	return SignalResult{
		Signal:      s.Name(),
		Score:       score,
		Triggered:   true,
		Description: fmt.Sprintf("%d failed attempts in the last %d minutes (possible brute force)", failedCount, s.cfg.FailedAttemptsWindowMinutes),
	}, nil
}
