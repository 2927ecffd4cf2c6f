package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"new_to_investigating", StatusNew, StatusInvestigating, true},
		{"new_to_resolved", StatusNew, StatusResolved, true},
		{"new_to_false_positive", StatusNew, StatusFalsePositive, true},
		{"investigating_to_resolved", StatusInvestigating, StatusResolved, true},
		{"investigating_to_false_positive", StatusInvestigating, StatusFalsePositive, true},
		{"investigating_back_to_new", StatusInvestigating, StatusNew, false},
		{"resolved_is_terminal", StatusResolved, StatusInvestigating, false},
		{"false_positive_is_terminal", StatusFalsePositive, StatusResolved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusInvestigating, StatusResolved, StatusFalsePositive} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("Closed")
	require.Error(t, err)
}

func TestAlert_TransitionTo(t *testing.T) {
	t.Run("stamps_resolution_time_on_terminal", func(t *testing.T) {
		a := &Alert{Status: StatusNew}
		require.NoError(t, a.TransitionTo(StatusInvestigating))
		assert.Nil(t, a.ResolvedAt)

		require.NoError(t, a.TransitionTo(StatusResolved))
		assert.NotNil(t, a.ResolvedAt)
	})

	t.Run("rejects_invalid_transition", func(t *testing.T) {
		a := &Alert{Status: StatusResolved}
		require.Error(t, a.TransitionTo(StatusInvestigating))
		assert.Equal(t, StatusResolved, a.Status)
	})
}

func TestAlert_Resolve(t *testing.T) {
	t.Run("records_operator_metadata", func(t *testing.T) {
		a := &Alert{Status: StatusInvestigating}
		require.NoError(t, a.Resolve(StatusFalsePositive, "analyst@example.com", "travel notice on file"))

		assert.Equal(t, StatusFalsePositive, a.Status)
		assert.Equal(t, "analyst@example.com", a.ResolvedBy)
		assert.Equal(t, "travel notice on file", a.Resolution)
		assert.NotNil(t, a.ResolvedAt)
	})

	t.Run("requires_terminal_status", func(t *testing.T) {
		a := &Alert{Status: StatusNew}
		require.Error(t, a.Resolve(StatusInvestigating, "analyst@example.com", ""))
	})
}
