package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEventWriter struct {
	inserted []*event.AccessEvent
	err      error
}

func (f *fakeEventWriter) Insert(_ context.Context, evt *event.AccessEvent) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, evt)
	return nil
}

const csvHeader = "provider_event_id,timestamp,user_id,user_principal_name,ip_address,country,city,device_id,device_name,client_app,auth_method,conditional_access,outcome\n"

func TestCSVLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("loads_valid_rows", func(t *testing.T) {
		input := csvHeader +
			"evt-1,2026-03-10T09:30:00Z,user-1,alice@example.com,203.0.113.10,ES,Madrid,device-1,laptop,Browser,mfa,success,success\n" +
			"evt-2,2026-03-10 10:15:00,user-2,bob@example.com,203.0.113.11,FR,Paris,device-2,phone,Mobile,password,,failure\n"
		writer := &fakeEventWriter{}
		loader := NewCSVLoader(writer, nil, nil, true, testLogger())

		result, err := loader.Load(ctx, strings.NewReader(input))
		require.NoError(t, err)

		assert.Equal(t, 2, result.Loaded)
		assert.Zero(t, result.Rejected)
		require.Len(t, writer.inserted, 2)

		first := writer.inserted[0]
		assert.Equal(t, "evt-1", first.ProviderEventID)
		assert.Equal(t, "user-1", first.UserID)
		assert.Equal(t, "alice@example.com", first.UserPrincipalName)
		assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), first.Timestamp)
		assert.Equal(t, event.OutcomeSuccess, first.Outcome)
		assert.True(t, first.Simulation)

		second := writer.inserted[1]
		assert.Equal(t, time.Date(2026, 3, 10, 10, 15, 0, 0, time.UTC), second.Timestamp)
		assert.Equal(t, event.OutcomeFailure, second.Outcome)
	})

	t.Run("rejects_bad_rows_without_aborting", func(t *testing.T) {
		input := csvHeader +
			",2026-03-10T09:30:00Z,user-1,,,,,,,,,,\n" + // missing provider id
			"evt-2,not-a-date,user-2,,,,,,,,,,\n" + // bad timestamp
			"evt-3,2026-03-10T09:30:00Z,user-3,,,,,,,,,,\n"
		writer := &fakeEventWriter{}
		loader := NewCSVLoader(writer, nil, nil, true, testLogger())

		result, err := loader.Load(ctx, strings.NewReader(input))
		require.NoError(t, err)

		assert.Equal(t, 1, result.Loaded)
		assert.Equal(t, 2, result.Rejected)
	})

	t.Run("insert_failure_counts_as_rejected", func(t *testing.T) {
		input := csvHeader +
			"evt-1,2026-03-10T09:30:00Z,user-1,,,,,,,,,,\n"
		writer := &fakeEventWriter{err: errors.New("db down")}
		loader := NewCSVLoader(writer, nil, nil, true, testLogger())

		result, err := loader.Load(ctx, strings.NewReader(input))
		require.NoError(t, err)
		assert.Zero(t, result.Loaded)
		assert.Equal(t, 1, result.Rejected)
	})

	t.Run("missing_required_header_is_fatal", func(t *testing.T) {
		input := "user_id,ip_address\nuser-1,203.0.113.10\n"
		loader := NewCSVLoader(&fakeEventWriter{}, nil, nil, true, testLogger())

		_, err := loader.Load(ctx, strings.NewReader(input))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider_event_id")
	})

	t.Run("extra_columns_are_ignored", func(t *testing.T) {
		input := "provider_event_id,timestamp,surprise\n" +
			"evt-1,2026-03-10T09:30:00Z,whatever\n"
		writer := &fakeEventWriter{}
		loader := NewCSVLoader(writer, nil, nil, false, testLogger())

		result, err := loader.Load(ctx, strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Loaded)
		assert.False(t, writer.inserted[0].Simulation)
	})

	t.Run("pseudonymizes_principal_names", func(t *testing.T) {
		input := csvHeader +
			"evt-1,2026-03-10T09:30:00Z,user-1,alice@example.com,,,,,,,,,\n"
		writer := &fakeEventWriter{}
		pseudo, err := NewPseudonymizer("test-secret", nil)
		require.NoError(t, err)
		loader := NewCSVLoader(writer, pseudo, nil, true, testLogger())

		result, err := loader.Load(ctx, strings.NewReader(input))
		require.NoError(t, err)
		require.Equal(t, 1, result.Loaded)

		upn := writer.inserted[0].UserPrincipalName
		assert.NotEqual(t, "alice@example.com", upn)
		assert.True(t, strings.HasPrefix(upn, "user-"))
	})
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", "2026-03-10T09:30:00Z", time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), false},
		{"rfc3339_with_offset", "2026-03-10T10:30:00+01:00", time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), false},
		{"space_separated", "2026-03-10 09:30:00", time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), false},
		{"t_separated_no_zone", "2026-03-10T09:30:00", time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s", got)
		})
	}
}
