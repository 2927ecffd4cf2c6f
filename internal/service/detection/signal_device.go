package detection

import (
	"context"
	"fmt"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// unknownDeviceSignal scores accesses from devices the user has never
// used. A missing device id is itself mildly suspicious and is flagged
// even for brand-new users.
type unknownDeviceSignal struct {
	cfg *Config
}

// NewUnknownDeviceSignal creates the device anomaly signal.
func NewUnknownDeviceSignal(cfg *Config) Signal {
	return &unknownDeviceSignal{cfg: cfg}
}

func (s *unknownDeviceSignal) Name() string    { return "unknown_device" }
func (s *unknownDeviceSignal) Weight() float64 { return s.cfg.Weights.UnknownDevice }

func (s *unknownDeviceSignal) Evaluate(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) (SignalResult, error) {
	deviceID := evt.DeviceID

	if deviceID == "" {
		return SignalResult{
			Signal:      s.Name(),
			Score:       0.3,
			Triggered:   true,
			Description: "device id not available",
		}, nil
	}

	if profile.TotalAccessCount < s.cfg.MinimumAccessesForProfile {
		return SignalResult{
			Signal:      s.Name(),
			Description: "insufficient profile to evaluate device",
		}, nil
	}

	if profile.HasDevice(deviceID) {
		return SignalResult{
			Signal:      s.Name(),
			Description: fmt.Sprintf("recognized device: %s", truncateID(deviceID)),
		}, nil
	}

	return SignalResult{
		Signal:      s.Name(),
		Score:       1.0,
		Triggered:   true,
		Description: fmt.Sprintf("unrecognized device: %s. Known devices: %d", truncateID(deviceID), len(profile.KnownDevices)),
	}, nil
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
