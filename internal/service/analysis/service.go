package analysis

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
	domainerrors "github.com/accesswatch/accesswatch-backend/internal/domain/errors"
	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// Progress is reported every this many events during a sweep.
const progressUpdateInterval = 10

// ErrSweepInProgress is returned when a sweep is requested while another
// one is already running in this process.
var ErrSweepInProgress = domainerrors.NewConflictError("an analysis sweep is already in progress")

// EventRepository is the slice of event persistence the analysis loop needs.
type EventRepository interface {
	// GetUnanalyzed returns unanalyzed events ordered oldest first.
	GetUnanalyzed(ctx context.Context, simulation bool, limit int) ([]*event.AccessEvent, error)
	// GetUnanalyzedInRange is GetUnanalyzed restricted to a timestamp range.
	GetUnanalyzedInRange(ctx context.Context, simulation bool, start, end time.Time, limit int) ([]*event.AccessEvent, error)
	// MarkAnalyzed flips the analyzed flag. Idempotent.
	MarkAnalyzed(ctx context.Context, id uuid.UUID, simulation bool) error
}

// AlertWriter persists alerts produced by the detection engine.
type AlertWriter interface {
	Insert(ctx context.Context, a *alert.Alert) error
}

// Analyzer scores one event. A (nil, nil) return means no alert.
type Analyzer interface {
	Analyze(ctx context.Context, evt *event.AccessEvent) (*alert.Alert, error)
}

// MetricsRecorder receives sweep telemetry. Implementations must tolerate
// being called from the sweep hot path.
type MetricsRecorder interface {
	RecordEventAnalyzed(ctx context.Context)
	RecordAlertCreated(ctx context.Context, severity string)
	RecordSweepDuration(ctx context.Context, d time.Duration, simulation bool)
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	EventsProcessed  int
	AlertsCreated    int
	AlertsBySeverity map[string]int
}

// TriggerRequest is a manually requested sweep over a date range.
type TriggerRequest struct {
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	BatchSize  int        `json:"batch_size,omitempty"`
	Simulation bool       `json:"simulation,omitempty"`
}

// TriggerResult reports what a manual sweep did.
type TriggerResult struct {
	EventsProcessed  int            `json:"events_processed"`
	AlertsCreated    int            `json:"alerts_created"`
	AlertsBySeverity map[string]int `json:"alerts_by_severity"`
	DurationSeconds  float64        `json:"duration_seconds"`
	StartDate        *time.Time     `json:"start_date,omitempty"`
	EndDate          *time.Time     `json:"end_date,omitempty"`
}

// Service drives the periodic analysis sweep: fetch unanalyzed events,
// score each one, persist any alerts, and mark the events analyzed. At
// most one sweep runs per process at a time.
type Service struct {
	events   EventRepository
	alerts   AlertWriter
	engine   Analyzer
	logger   *slog.Logger
	metrics  MetricsRecorder
	progress *Progress

	batchSize int
	running   atomic.Bool
	now       func() time.Time
}

// NewService creates the analysis service. metrics may be nil.
func NewService(events EventRepository, alerts AlertWriter, engine Analyzer, batchSize int, metrics MetricsRecorder, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{
		events:    events,
		alerts:    alerts,
		engine:    engine,
		logger:    logger,
		metrics:   metrics,
		progress:  NewProgress(),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Progress exposes the sweep progress tracker.
func (s *Service) Progress() *Progress {
	return s.progress
}

// SweepOnce runs one analysis sweep over the next batch of unanalyzed
// events. Returns ErrSweepInProgress when a sweep is already running.
func (s *Service) SweepOnce(ctx context.Context, simulation bool) (SweepStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SweepStats{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	batch, err := s.events.GetUnanalyzed(ctx, simulation, s.batchSize)
	if err != nil {
		return SweepStats{}, domainerrors.NewInternalError("failed to fetch unanalyzed events").WithCause(err)
	}
	return s.sweep(ctx, batch, simulation)
}

// RunManual runs an operator-triggered sweep, optionally restricted to a
// date range. The end date is inclusive: events up to 23:59:59 of that day
// are considered.
func (s *Service) RunManual(ctx context.Context, req TriggerRequest) (*TriggerResult, error) {
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, domainerrors.NewValidationError("INVALID_DATE_RANGE", "end date is before start date")
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	start := time.Time{}
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	end := s.now().UTC()
	if req.EndDate != nil {
		end = req.EndDate.UTC().Truncate(24 * time.Hour).Add(24*time.Hour - time.Second)
	}

	began := s.now()
	batch, err := s.events.GetUnanalyzedInRange(ctx, req.Simulation, start, end, batchSize)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to fetch unanalyzed events in range").WithCause(err)
	}

	stats, err := s.sweep(ctx, batch, req.Simulation)
	if err != nil {
		return nil, err
	}

	return &TriggerResult{
		EventsProcessed:  stats.EventsProcessed,
		AlertsCreated:    stats.AlertsCreated,
		AlertsBySeverity: stats.AlertsBySeverity,
		DurationSeconds:  s.now().Sub(began).Seconds(),
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	}, nil
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration, simulation bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "analysis loop started",
		"interval", interval.String(),
		"simulation", simulation)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "analysis loop stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, simulation); err != nil && err != ErrSweepInProgress {
				s.logger.ErrorContext(ctx, "analysis sweep failed", "error", err)
			}
		}
	}
}

// sweep processes one batch sequentially, oldest event first. A failure
// on one event never blocks the rest; events that could not be scored or
// whose alert could not be persisted are left unmarked so a later sweep
// retries them.
func (s *Service) sweep(ctx context.Context, batch []*event.AccessEvent, simulation bool) (SweepStats, error) {
	// Every severity key is present in the result, zero or not.
	stats := SweepStats{AlertsBySeverity: map[string]int{
		alert.SeverityHigh.String():   0,
		alert.SeverityMedium.String(): 0,
		alert.SeverityLow.String():    0,
	}}
	s.progress.Start(len(batch), simulation)

	if len(batch) == 0 {
		s.progress.Complete(0, 0, nil)
		return stats, nil
	}

	s.logger.InfoContext(ctx, "analysis sweep started",
		"events", len(batch),
		"simulation", simulation)
	began := s.now()

	for _, evt := range batch {
		if err := ctx.Err(); err != nil {
			s.progress.Complete(stats.EventsProcessed, stats.AlertsCreated, err)
			return stats, err
		}

		a, err := s.engine.Analyze(ctx, evt)
		if err != nil {
			s.logger.ErrorContext(ctx, "event analysis failed",
				"event_id", evt.ID,
				"error", err)
			continue
		}

		if a != nil {
			if err := s.alerts.Insert(ctx, a); err != nil {
				s.logger.ErrorContext(ctx, "failed to persist alert",
					"event_id", evt.ID,
					"alert_id", a.ID,
					"error", err)
				continue
			}
			stats.AlertsCreated++
			stats.AlertsBySeverity[a.Severity.String()]++
			if s.metrics != nil {
				s.metrics.RecordAlertCreated(ctx, a.Severity.String())
			}
		}

		if err := s.events.MarkAnalyzed(ctx, evt.ID, simulation); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark event analyzed",
				"event_id", evt.ID,
				"error", err)
			continue
		}

		stats.EventsProcessed++
		if s.metrics != nil {
			s.metrics.RecordEventAnalyzed(ctx)
		}
		if stats.EventsProcessed%progressUpdateInterval == 0 {
			s.progress.Update(stats.EventsProcessed, stats.AlertsCreated)
		}
	}

	elapsed := s.now().Sub(began)
	if s.metrics != nil {
		s.metrics.RecordSweepDuration(ctx, elapsed, simulation)
	}
	s.progress.Complete(stats.EventsProcessed, stats.AlertsCreated, nil)

	s.logger.InfoContext(ctx, "analysis sweep completed",
		"events_processed", stats.EventsProcessed,
		"alerts_created", stats.AlertsCreated,
		"duration", elapsed.String())

	return stats, nil
}
