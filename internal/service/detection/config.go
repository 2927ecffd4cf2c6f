package detection

// Config holds the tunable parameters of the detection engine.
type Config struct {
	// Severity thresholds on the 0-100 risk score scale. Must be
	// ordered MinimumAlertThreshold <= MediumSeverityThreshold <=
	// HighSeverityThreshold.
	HighSeverityThreshold   float64
	MediumSeverityThreshold float64
	MinimumAlertThreshold   float64

	// Baseline window for behavior profiles.
	ProfileLookbackDays int

	// Minimum observed accesses before most signals activate
	// (cold-start suppression).
	MinimumAccessesForProfile int

	// Per-signal trigger thresholds (0.0-1.0).
	UnusualLocationThreshold float64
	IPChangeThreshold        float64
	UnknownDeviceThreshold   float64
	AtypicalTimeThreshold    float64
	WeakAuthThreshold        float64

	// Failed-attempts window.
	FailedAttemptsCount         int
	FailedAttemptsWindowMinutes int

	Weights Weights
}

// Weights are each signal's share of the aggregate risk score. They are
// expected to sum to ~1.0 but that is not enforced.
type Weights struct {
	UnusualLocation float64
	IPChange        float64
	UnknownDevice   float64
	AtypicalTime    float64
	WeakAuth        float64
	FailedAttempts  float64
}

// Total returns the sum of all weights.
func (w Weights) Total() float64 {
	return w.UnusualLocation + w.IPChange + w.UnknownDevice +
		w.AtypicalTime + w.WeakAuth + w.FailedAttempts
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		HighSeverityThreshold:   70.0,
		MediumSeverityThreshold: 40.0,
		MinimumAlertThreshold:   30.0,

		ProfileLookbackDays:       30,
		MinimumAccessesForProfile: 10,

		UnusualLocationThreshold: 0.7,
		IPChangeThreshold:        0.6,
		UnknownDeviceThreshold:   0.8,
		AtypicalTimeThreshold:    0.5,
		WeakAuthThreshold:        0.6,

		FailedAttemptsCount:         3,
		FailedAttemptsWindowMinutes: 15,

		Weights: Weights{
			UnusualLocation: 0.20,
			IPChange:        0.15,
			UnknownDevice:   0.25,
			AtypicalTime:    0.10,
			WeakAuth:        0.15,
			FailedAttempts:  0.15,
		},
	}
}
