package detection

import (
	"context"
	"fmt"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// Users with many known IPs are likely mobile; a new IP is then less
// suspicious.
const mobileUserIPCount = 10

// ipChangeSignal scores accesses from IP addresses outside the user's
// recent set.
type ipChangeSignal struct {
	cfg *Config
}

// NewIPChangeSignal creates the IP anomaly signal.
func NewIPChangeSignal(cfg *Config) Signal {
	return &ipChangeSignal{cfg: cfg}
}

func (s *ipChangeSignal) Name() string    { return "ip_change" }
func (s *ipChangeSignal) Weight() float64 { return s.cfg.Weights.IPChange }

func (s *ipChangeSignal) Evaluate(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) (SignalResult, error) {
	ip := evt.IPAddress
	if ip == "" {
		ip = "0.0.0.0"
	}

	if profile.TotalAccessCount < s.cfg.MinimumAccessesForProfile {
		return SignalResult{
			Signal:      s.Name(),
			Description: "insufficient profile to evaluate IP",
		}, nil
	}

	if profile.HasIP(ip) {
		return SignalResult{
			Signal:      s.Name(),
			Description: fmt.Sprintf("known IP: %s", ip),
		}, nil
	}

	score := 0.8
	if len(profile.CommonIPs) > mobileUserIPCount {
		score = 0.6
	}

	return SignalResult{
		Signal:      s.Name(),
		Score:       score,
		Triggered:   true,
		Description: fmt.Sprintf("unrecognized IP: %s. Known IPs: %d", ip, len(profile.CommonIPs)),
	}, nil
}
