package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		input string
		want  Outcome
	}{
		{"success", OutcomeSuccess},
		{"Success", OutcomeSuccess},
		{"correcto", OutcomeSuccess},
		{"0", OutcomeSuccess},
		{"failure", OutcomeFailure},
		{"failed", OutcomeFailure},
		{"ERROR", OutcomeFailure},
		{" success ", OutcomeSuccess},
		{"", OutcomeIndeterminate},
		{"interrupted", OutcomeIndeterminate},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOutcome(tt.input))
		})
	}
}

func TestNewAccessEvent(t *testing.T) {
	ts := time.Date(2026, 3, 10, 9, 30, 0, 0, time.FixedZone("CET", 3600))

	t.Run("valid", func(t *testing.T) {
		evt, err := NewAccessEvent("evt-1", "user-1", ts, "203.0.113.10")
		require.NoError(t, err)
		assert.NotEqual(t, [16]byte{}, [16]byte(evt.ID))
		assert.Equal(t, "evt-1", evt.ProviderEventID)
		assert.Equal(t, time.UTC, evt.Timestamp.Location())
		assert.False(t, evt.Analyzed)
	})

	t.Run("empty_user_id_is_allowed", func(t *testing.T) {
		evt, err := NewAccessEvent("evt-1", "", ts, "203.0.113.10")
		require.NoError(t, err)
		assert.Empty(t, evt.UserID)
	})

	t.Run("missing_provider_event_id", func(t *testing.T) {
		_, err := NewAccessEvent("", "user-1", ts, "203.0.113.10")
		require.Error(t, err)
	})

	t.Run("zero_timestamp", func(t *testing.T) {
		_, err := NewAccessEvent("evt-1", "user-1", time.Time{}, "203.0.113.10")
		require.Error(t, err)
	})
}

func TestMarkAnalyzed(t *testing.T) {
	evt, err := NewAccessEvent("evt-1", "user-1", time.Now(), "203.0.113.10")
	require.NoError(t, err)

	evt.MarkAnalyzed()
	assert.True(t, evt.Analyzed)
	evt.MarkAnalyzed()
	assert.True(t, evt.Analyzed)
}
