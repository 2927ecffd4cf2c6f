package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
	domainerrors "github.com/accesswatch/accesswatch-backend/internal/domain/errors"
	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// Signal evaluations for one event run concurrently, bounded by this pool
// size.
const signalWorkers = 4

// Engine combines weighted risk signals into an aggregate score and emits
// an alert when the score clears the configured threshold. It is a
// deterministic function of (event, profile, config, signal outputs); IDs
// and timestamps are assigned only at alert construction.
type Engine struct {
	profiles ProfileRepository
	signals  []Signal
	cfg      *Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a detection engine over an explicit ordered signal
// registry.
func NewEngine(profiles ProfileRepository, signals []Signal, cfg *Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if total := cfg.Weights.Total(); math.Abs(total-1.0) > 0.01 {
		logger.Warn("signal weights do not sum to 1.0", "total", total)
	}
	return &Engine{
		profiles: profiles,
		signals:  signals,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// NewDefaultSignals builds the standard signal registry in evaluation
// order.
func NewDefaultSignals(cfg *Config, counter FailedAttemptCounter) []Signal {
	return []Signal{
		NewUnusualLocationSignal(cfg),
		NewIPChangeSignal(cfg),
		NewUnknownDeviceSignal(cfg),
		NewAtypicalTimeSignal(cfg),
		NewWeakAuthSignal(cfg),
		NewFailedAttemptsSignal(cfg, counter),
	}
}

// Analyze scores one access event against the user's behavior profile.
// It returns (nil, nil) for events that do not qualify for an alert, and
// an error only when the profile could not be built; the caller should
// then leave the event unanalyzed so it is retried.
func (e *Engine) Analyze(ctx context.Context, evt *event.AccessEvent) (*alert.Alert, error) {
	if evt.UserID == "" {
		e.logger.WarnContext(ctx, "event has no user id, skipping analysis",
			"event_id", evt.ID)
		return nil, nil
	}

	since := e.now().UTC().AddDate(0, 0, -e.cfg.ProfileLookbackDays)
	profile, err := e.profiles.BuildProfile(ctx, evt.UserID, evt.Simulation, since)
	if err != nil {
		return nil, fmt.Errorf("building profile for user %s: %w", evt.UserID, err)
	}

	results := e.evaluateSignals(ctx, evt, profile)

	var totalWeighted float64
	var triggered []SignalResult
	for i, res := range results {
		if !res.Triggered {
			continue
		}
		totalWeighted += res.Score * e.signals[i].Weight()
		triggered = append(triggered, res)
		e.logger.DebugContext(ctx, "signal triggered",
			"signal", res.Signal,
			"event_id", evt.ID,
			"score", res.Score,
			"weight", e.signals[i].Weight())
	}

	riskScore := math.Min(totalWeighted*100, 100)

	e.logger.InfoContext(ctx, "event analyzed",
		"event_id", evt.ID,
		"risk_score", riskScore,
		"triggered_signals", len(triggered))

	if riskScore < e.cfg.MinimumAlertThreshold {
		return nil, nil
	}

	a := e.buildAlert(evt, riskScore, triggered)

	e.logger.WarnContext(ctx, "alert created",
		"event_id", evt.ID,
		"user", evt.UserPrincipalName,
		"risk_score", riskScore,
		"severity", a.Severity.String(),
		"signals", len(triggered))

	return a, nil
}

// evaluateSignals fans evaluation out to a worker pool and joins before
// returning. Results keep registry order so the weighted sum is stable. A
// failing signal is logged and contributes nothing.
func (e *Engine) evaluateSignals(ctx context.Context, evt *event.AccessEvent, profile *BehaviorProfile) []SignalResult {
	results := make([]SignalResult, len(e.signals))
	sem := make(chan struct{}, signalWorkers)
	var wg sync.WaitGroup

	for i, sig := range e.signals {
		wg.Add(1)
		go func(i int, sig Signal) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := sig.Evaluate(ctx, evt, profile)
			if err != nil {
				e.logger.WarnContext(ctx, "signal evaluation failed",
					"signal", sig.Name(),
					"event_id", evt.ID,
					"error", domainerrors.NewDetectionError(sig.Name(), "signal evaluation failed").WithCause(err))
				results[i] = SignalResult{Signal: sig.Name()}
				return
			}
			results[i] = res
		}(i, sig)
	}

	wg.Wait()
	return results
}

func (e *Engine) severityFor(riskScore float64) alert.Severity {
	switch {
	case riskScore >= e.cfg.HighSeverityThreshold:
		return alert.SeverityHigh
	case riskScore >= e.cfg.MediumSeverityThreshold:
		return alert.SeverityMedium
	default:
		return alert.SeverityLow
	}
}

func (e *Engine) buildAlert(evt *event.AccessEvent, riskScore float64, triggered []SignalResult) *alert.Alert {
	severity := e.severityFor(riskScore)

	var title string
	switch severity {
	case alert.SeverityHigh:
		title = fmt.Sprintf("High risk access detected - %s", evt.UserPrincipalName)
	case alert.SeverityMedium:
		title = fmt.Sprintf("Suspicious access detected - %s", evt.UserPrincipalName)
	default:
		title = fmt.Sprintf("Anomalous access detected - %s", evt.UserPrincipalName)
	}

	// Describe using the top 3 signals by score.
	byScore := make([]SignalResult, len(triggered))
	copy(byScore, triggered)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].Score > byScore[j].Score
	})
	top := byScore
	if len(top) > 3 {
		top = top[:3]
	}
	descriptions := make([]string, len(top))
	for i, r := range top {
		descriptions[i] = r.Description
	}
	description := fmt.Sprintf("%d risk signal(s) detected: %s",
		len(triggered), strings.Join(descriptions, "; "))

	return &alert.Alert{
		ID:                uuid.New(),
		EventID:           evt.ID,
		UserID:            evt.UserID,
		UserPrincipalName: evt.UserPrincipalName,
		Severity:          severity,
		RiskScore:         riskScore,
		Status:            alert.StatusNew,
		Title:             title,
		Description:       description,
		DetectedSignals:   serializeSignals(triggered),
		EventTimestamp:    evt.Timestamp,
		IPAddress:         evt.IPAddress,
		Country:           evt.Country,
		City:              evt.City,
		DeviceID:          evt.DeviceID,
		DetectedAt:        e.now().UTC(),
		Simulation:        evt.Simulation,
	}
}

// serializeSignals renders the full triggered set as a JSON audit trail.
func serializeSignals(triggered []SignalResult) string {
	type entry struct {
		Signal string  `json:"signal"`
		Score  float64 `json:"score"`
		Detail string  `json:"detail"`
	}
	entries := make([]entry, len(triggered))
	for i, r := range triggered {
		entries[i] = entry{
			Signal: r.Signal,
			Score:  math.Round(r.Score*100) / 100,
			Detail: r.Description,
		}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}
