package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// Methods considered weak: single-factor or phishable second factors.
var weakAuthMethods = []string{"password", "passwordless", "sms", "voicecall", "oath"}

// weakAuthSignal scores the use of weak or unusual-for-user authentication
// methods. Unlike most signals it still fires under cold start when the
// method is on the weak list.
type weakAuthSignal struct {
	cfg *Config
}

// NewWeakAuthSignal creates the authentication-method signal.
func NewWeakAuthSignal(cfg *Config) Signal {
	return &weakAuthSignal{cfg: cfg}
}

func (s *weakAuthSignal) Name() string    { return "weak_auth" }
func (s *weakAuthSignal) Weight() float64 { return s.cfg.Weights.WeakAuth }

func (s *weakAuthSignal) Evaluate(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) (SignalResult, error) {
	method := evt.AuthMethod

	if method == "" {
		// Fall back to the conditional-access outcome when the
		// provider omitted the method.
		if strings.EqualFold(evt.ConditionalAccess, "failure") {
			return SignalResult{
				Signal:      s.Name(),
				Score:       0.7,
				Triggered:   true,
				Description: "access without satisfying conditional access policies",
			}, nil
		}
		return SignalResult{
			Signal:      s.Name(),
			Description: "authentication method not specified",
		}, nil
	}

	if profile.TotalAccessCount < s.cfg.MinimumAccessesForProfile {
		if isWeakAuthMethod(method) {
			return SignalResult{
				Signal:      s.Name(),
				Score:       0.6,
				Triggered:   true,
				Description: fmt.Sprintf("potentially weak authentication method: %s", method),
			}, nil
		}
		return SignalResult{
			Signal:      s.Name(),
			Description: fmt.Sprintf("authentication method: %s", method),
		}, nil
	}

	if profile.HasAuthMethod(method) {
		return SignalResult{
			Signal:      s.Name(),
			Description: fmt.Sprintf("usual authentication method: %s", method),
		}, nil
	}

	score := 0.5
	if isWeakAuthMethod(method) {
		score = 0.8
	}

	return SignalResult{
		Signal:      s.Name(),
		Score:       score,
		Triggered:   true,
		Description: fmt.Sprintf("unusual authentication method: %s. Usual methods: %s", method, strings.Join(profile.UsualAuthMethods, ", ")),
	}, nil
}

func isWeakAuthMethod(method string) bool {
	for _, weak := range weakAuthMethods {
		if strings.Contains(strings.ToLower(method), weak) {
			return true
		}
	}
	return false
}
