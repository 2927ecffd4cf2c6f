package detection

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
	"github.com/accesswatch/accesswatch-backend/internal/testutil/fixtures"
)

func TestBuildProfile_EmptyHistory(t *testing.T) {
	start := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	profile := BuildProfile("user-1", nil, start, end)

	require.NotNil(t, profile)
	assert.Equal(t, "user-1", profile.UserID)
	assert.Zero(t, profile.TotalAccessCount)
	assert.Empty(t, profile.CommonCountries)
	assert.Empty(t, profile.CommonIPs)
	assert.Empty(t, profile.KnownDevices)
	assert.Empty(t, profile.TypicalHours)
	assert.Equal(t, start, profile.PeriodStart)
	assert.Equal(t, end, profile.PeriodEnd)
}

func TestBuildProfile_Counts(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []*event.AccessEvent{
		fixtures.NewEventBuilder(t).WithTimestamp(base).WithOutcome(event.OutcomeSuccess).Build(),
		fixtures.NewEventBuilder(t).WithTimestamp(base.Add(time.Hour)).WithOutcome(event.OutcomeFailure).Build(),
		fixtures.NewEventBuilder(t).WithTimestamp(base.Add(2 * time.Hour)).WithOutcome(event.OutcomeSuccess).Build(),
	}

	profile := BuildProfile("user-1", events, base, base.Add(24*time.Hour))

	assert.Equal(t, 3, profile.TotalAccessCount)
	assert.Equal(t, 2, profile.SuccessfulAccessCount)
	assert.Equal(t, 1, profile.FailedAccessCount)
}

func TestBuildProfile_TopLocations(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	var events []*event.AccessEvent
	add := func(country string, n int) {
		for i := 0; i < n; i++ {
			events = append(events, fixtures.NewEventBuilder(t).
				WithTimestamp(base.Add(time.Duration(len(events))*time.Hour)).
				WithLocation(country, country+"-city").
				Build())
		}
	}
	// Six countries so one falls off the top-5 cut.
	add("ES", 5)
	add("FR", 4)
	add("DE", 3)
	add("IT", 2)
	add("PT", 2)
	add("NL", 1)

	profile := BuildProfile("user-1", events, base, base.Add(30*24*time.Hour))

	require.Len(t, profile.CommonCountries, 5)
	assert.Equal(t, "ES", profile.CommonCountries[0])
	assert.Equal(t, "FR", profile.CommonCountries[1])
	assert.Equal(t, "DE", profile.CommonCountries[2])
	// IT and PT both have 2; PT's occurrences are more recent.
	assert.Equal(t, "PT", profile.CommonCountries[3])
	assert.Equal(t, "IT", profile.CommonCountries[4])
	assert.NotContains(t, profile.CommonCountries, "NL")
}

func TestBuildProfile_RecentDistinctIPs(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	var events []*event.AccessEvent
	for i := 0; i < 25; i++ {
		events = append(events, fixtures.NewEventBuilder(t).
			WithTimestamp(base.Add(time.Duration(i)*time.Hour)).
			WithIPAddress(fmt.Sprintf("10.0.0.%d", i)).
			Build())
	}
	// Duplicate of the most recent IP should not add a slot.
	events = append(events, fixtures.NewEventBuilder(t).
		WithTimestamp(base.Add(25*time.Hour)).
		WithIPAddress("10.0.0.24").
		Build())

	profile := BuildProfile("user-1", events, base, base.Add(30*24*time.Hour))

	require.Len(t, profile.CommonIPs, 20)
	// Most recent distinct IPs are kept, oldest fall off.
	assert.Contains(t, profile.CommonIPs, "10.0.0.24")
	assert.Contains(t, profile.CommonIPs, "10.0.0.5")
	assert.NotContains(t, profile.CommonIPs, "10.0.0.4")
	assert.NotContains(t, profile.CommonIPs, "10.0.0.0")
}

func TestBuildProfile_TypicalHours(t *testing.T) {
	// All events on a Monday, between 08:15 and 17:45.
	monday := time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	events := []*event.AccessEvent{
		fixtures.NewEventBuilder(t).WithTimestamp(monday).Build(),
		fixtures.NewEventBuilder(t).WithTimestamp(monday.Add(3 * time.Hour)).Build(),
		fixtures.NewEventBuilder(t).WithTimestamp(time.Date(2026, 3, 2, 17, 45, 0, 0, time.UTC)).Build(),
	}

	profile := BuildProfile("user-1", events, monday.AddDate(0, 0, -30), monday.AddDate(0, 0, 1))

	r, ok := profile.TypicalHours[time.Monday]
	require.True(t, ok)
	assert.Equal(t, tod(8, 15), r.Start)
	assert.Equal(t, tod(17, 45), r.End)

	_, ok = profile.TypicalHours[time.Tuesday]
	assert.False(t, ok)
}

func TestBuildProfile_DistinctSets(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []*event.AccessEvent{
		fixtures.NewEventBuilder(t).WithTimestamp(base).WithDeviceID("dev-a").WithAuthMethod("mfa").Build(),
		fixtures.NewEventBuilder(t).WithTimestamp(base.Add(time.Hour)).WithDeviceID("dev-a").WithAuthMethod("mfa").Build(),
		fixtures.NewEventBuilder(t).WithTimestamp(base.Add(2 * time.Hour)).WithDeviceID("dev-b").WithAuthMethod("password").Build(),
	}

	profile := BuildProfile("user-1", events, base, base.Add(24*time.Hour))

	assert.ElementsMatch(t, []string{"dev-a", "dev-b"}, profile.KnownDevices)
	assert.ElementsMatch(t, []string{"mfa", "password"}, profile.UsualAuthMethods)
}
