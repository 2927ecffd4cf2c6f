package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// unusualLocationSignal scores accesses from countries or cities the user
// has not been seen in.
type unusualLocationSignal struct {
	cfg *Config
}

// NewUnusualLocationSignal creates the geographic anomaly signal.
func NewUnusualLocationSignal(cfg *Config) Signal {
	return &unusualLocationSignal{cfg: cfg}
}

func (s *unusualLocationSignal) Name() string    { return "unusual_location" }
func (s *unusualLocationSignal) Weight() float64 { return s.cfg.Weights.UnusualLocation }

func (s *unusualLocationSignal) Evaluate(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) (SignalResult, error) {
	country := evt.Country
	if country == "" {
		country = "Unknown"
	}
	city := evt.City
	if city == "" {
		city = "Unknown"
	}

	// New users have no geographic baseline yet.
	if profile.TotalAccessCount < s.cfg.MinimumAccessesForProfile {
		return SignalResult{
			Signal:      s.Name(),
			Description: "insufficient profile to evaluate location",
		}, nil
	}

	knownCountry := profile.HasCountry(country)
	knownCity := profile.HasCity(city)

	switch {
	case knownCountry && knownCity:
		return SignalResult{
			Signal:      s.Name(),
			Description: fmt.Sprintf("usual location: %s, %s", country, city),
		}, nil
	case knownCountry:
		return SignalResult{
			Signal:      s.Name(),
			Score:       0.5,
			Triggered:   true,
			Description: fmt.Sprintf("new city in known country: %s, %s", city, country),
		}, nil
	default:
		return SignalResult{
			Signal:      s.Name(),
			Score:       1.0,
			Triggered:   true,
			Description: fmt.Sprintf("unusual country: %s, %s. Usual countries: %s", country, city, strings.Join(profile.CommonCountries, ", ")),
		}, nil
	}
}
