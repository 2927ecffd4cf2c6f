package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// Two hours outside the typical range saturates the score.
const maxDistanceMinutes = 120.0

// atypicalTimeSignal scores accesses outside the user's typical
// time-of-day range for that weekday.
type atypicalTimeSignal struct {
	cfg *Config
}

// NewAtypicalTimeSignal creates the time-of-day anomaly signal.
func NewAtypicalTimeSignal(cfg *Config) Signal {
	return &atypicalTimeSignal{cfg: cfg}
}

func (s *atypicalTimeSignal) Name() string    { return "atypical_time" }
func (s *atypicalTimeSignal) Weight() float64 { return s.cfg.Weights.AtypicalTime }

func (s *atypicalTimeSignal) Evaluate(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) (SignalResult, error) {
	if profile.TotalAccessCount < s.cfg.MinimumAccessesForProfile {
		return SignalResult{
			Signal:      s.Name(),
			Description: "insufficient profile to evaluate access time",
		}, nil
	}

	weekday := evt.Timestamp.Weekday()
	tod := TimeOfDay(evt.Timestamp)

	typical, ok := profile.TypicalHours[weekday]
	if !ok {
		// No history at all for this weekday: moderate risk.
		return SignalResult{
			Signal:      s.Name(),
			Score:       0.5,
			Triggered:   true,
			Description: fmt.Sprintf("access on unusual day: %s at %s", weekday, formatTimeOfDay(tod)),
		}, nil
	}

	if typical.Contains(tod) {
		return SignalResult{
			Signal:      s.Name(),
			Description: fmt.Sprintf("usual hours: %s at %s", weekday, formatTimeOfDay(tod)),
		}, nil
	}

	distance := typical.DistanceMinutes(tod)
	score := distance / maxDistanceMinutes
	if score > 1.0 {
		score = 1.0
	}

	return SignalResult{
		Signal:    s.Name(),
		Score:     score,
		Triggered: score >= s.cfg.AtypicalTimeThreshold,
		Description: fmt.Sprintf("unusual hours: %s at %s. Typical range: %s-%s",
			weekday, formatTimeOfDay(tod), formatTimeOfDay(typical.Start), formatTimeOfDay(typical.End)),
	}, nil
}

func formatTimeOfDay(tod time.Duration) string {
	h := int(tod.Hours())
	m := int(tod.Minutes()) % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}
