package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// csvColumns are the recognized header names. Unknown columns are ignored
// so exports with extra fields still load.
var csvColumns = []string{
	"provider_event_id",
	"timestamp",
	"user_id",
	"user_principal_name",
	"ip_address",
	"country",
	"city",
	"device_id",
	"device_name",
	"client_app",
	"auth_method",
	"conditional_access",
	"outcome",
}

// LoadResult reports what a CSV load did.
type LoadResult struct {
	Loaded   int
	Rejected int
}

// CSVLoader bulk-loads historical sign-in exports, typically to seed
// behavior profiles before live ingestion starts. Loaded events are
// flagged as simulation data so they never trigger real response actions.
type CSVLoader struct {
	writer     EventWriter
	pseudo     *Pseudonymizer
	metrics    MetricsRecorder
	logger     *slog.Logger
	simulation bool
}

// NewCSVLoader creates a loader. pseudo and metrics may be nil.
func NewCSVLoader(writer EventWriter, pseudo *Pseudonymizer, metrics MetricsRecorder, simulation bool, logger *slog.Logger) *CSVLoader {
	return &CSVLoader{
		writer:     writer,
		pseudo:     pseudo,
		metrics:    metrics,
		logger:     logger,
		simulation: simulation,
	}
}

// Load reads a headered CSV stream and inserts one event per valid row.
// Invalid rows are counted and logged, never fatal; a malformed stream or
// unusable header is.
func (l *CSVLoader) Load(ctx context.Context, r io.Reader) (LoadResult, error) {
	var result LoadResult

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("reading CSV header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return result, err
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		evt, err := l.rowToEvent(ctx, record, cols)
		if err != nil {
			result.Rejected++
			l.logger.WarnContext(ctx, "rejected CSV row",
				"line", line,
				"error", err)
			continue
		}

		if err := l.writer.Insert(ctx, evt); err != nil {
			result.Rejected++
			l.logger.WarnContext(ctx, "failed to insert CSV row",
				"line", line,
				"error", err)
			continue
		}
		result.Loaded++
		if l.metrics != nil {
			l.metrics.RecordEventIngested(ctx, "csv")
		}
	}

	l.logger.InfoContext(ctx, "CSV load completed",
		"loaded", result.Loaded,
		"rejected", result.Rejected)
	return result, nil
}

func (l *CSVLoader) rowToEvent(ctx context.Context, record []string, cols map[string]int) (*event.AccessEvent, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	ts, err := parseTimestamp(field("timestamp"))
	if err != nil {
		return nil, err
	}

	evt, err := event.NewAccessEvent(field("provider_event_id"), field("user_id"), ts, field("ip_address"))
	if err != nil {
		return nil, err
	}

	upn := field("user_principal_name")
	if l.pseudo != nil {
		upn, err = l.pseudo.Pseudonymize(ctx, upn)
		if err != nil {
			return nil, err
		}
	}

	evt.UserPrincipalName = upn
	evt.Country = field("country")
	evt.City = field("city")
	evt.DeviceID = field("device_id")
	evt.DeviceName = field("device_name")
	evt.ClientApp = field("client_app")
	evt.AuthMethod = field("auth_method")
	evt.ConditionalAccess = field("conditional_access")
	evt.Outcome = event.ParseOutcome(field("outcome"))
	evt.Simulation = l.simulation
	return evt, nil
}

// columnIndex maps recognized header names to their positions. The two
// fields every event needs must be present.
func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(csvColumns))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"provider_event_id", "timestamp"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header missing required column %q", required)
		}
	}
	return cols, nil
}

// parseTimestamp accepts RFC 3339 and the date-time format the legacy
// exports use.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
