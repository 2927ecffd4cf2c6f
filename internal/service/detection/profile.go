package detection

import (
	"sort"
	"time"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

const (
	topLocationCount = 5
	recentIPCount    = 20
)

// BuildProfile aggregates a user's historical events into a behavior
// profile in a single pass. Events may arrive in any order. Empty history
// yields a profile with zero counts and empty collections.
func BuildProfile(userID string, events []*event.AccessEvent, periodStart, periodEnd time.Time) *BehaviorProfile {
	profile := &BehaviorProfile{
		UserID:       userID,
		TypicalHours: make(map[time.Weekday]TimeRange),
		BuiltAt:      time.Now().UTC(),
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
	}
	if len(events) == 0 {
		return profile
	}

	// Most recent first, so distinct-IP collection and frequency
	// tie-breaks read off recency directly.
	sorted := make([]*event.AccessEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	countryFreq := make(map[string]*locationStat)
	cityFreq := make(map[string]*locationStat)
	seenIPs := make(map[string]struct{})
	seenDevices := make(map[string]struct{})
	seenMethods := make(map[string]struct{})
	seenApps := make(map[string]struct{})

	for recency, evt := range sorted {
		profile.TotalAccessCount++
		switch evt.Outcome {
		case event.OutcomeSuccess:
			profile.SuccessfulAccessCount++
		case event.OutcomeFailure:
			profile.FailedAccessCount++
		}

		if evt.Country != "" {
			bumpLocation(countryFreq, evt.Country, recency)
		}
		if evt.City != "" {
			bumpLocation(cityFreq, evt.City, recency)
		}

		if evt.IPAddress != "" && len(profile.CommonIPs) < recentIPCount {
			if _, ok := seenIPs[evt.IPAddress]; !ok {
				seenIPs[evt.IPAddress] = struct{}{}
				profile.CommonIPs = append(profile.CommonIPs, evt.IPAddress)
			}
		}
		if evt.DeviceID != "" {
			if _, ok := seenDevices[evt.DeviceID]; !ok {
				seenDevices[evt.DeviceID] = struct{}{}
				profile.KnownDevices = append(profile.KnownDevices, evt.DeviceID)
			}
		}
		if evt.AuthMethod != "" {
			if _, ok := seenMethods[evt.AuthMethod]; !ok {
				seenMethods[evt.AuthMethod] = struct{}{}
				profile.UsualAuthMethods = append(profile.UsualAuthMethods, evt.AuthMethod)
			}
		}
		if evt.ClientApp != "" {
			if _, ok := seenApps[evt.ClientApp]; !ok {
				seenApps[evt.ClientApp] = struct{}{}
				profile.CommonApps = append(profile.CommonApps, evt.ClientApp)
			}
		}

		weekday := evt.Timestamp.Weekday()
		tod := TimeOfDay(evt.Timestamp)
		if r, ok := profile.TypicalHours[weekday]; ok {
			if tod < r.Start {
				r.Start = tod
			}
			if tod > r.End {
				r.End = tod
			}
			profile.TypicalHours[weekday] = r
		} else {
			profile.TypicalHours[weekday] = TimeRange{Start: tod, End: tod}
		}
	}

	profile.CommonCountries = topLocations(countryFreq, topLocationCount)
	profile.CommonCities = topLocations(cityFreq, topLocationCount)

	return profile
}

type locationStat struct {
	name    string
	count   int
	recency int // index into most-recent-first order; lower is more recent
}

func bumpLocation(freq map[string]*locationStat, name string, recency int) {
	if s, ok := freq[name]; ok {
		s.count++
		return
	}
	freq[name] = &locationStat{name: name, count: 1, recency: recency}
}

// topLocations ranks by frequency, breaking ties by most recent occurrence
// and finally lexicographically so the result is deterministic.
func topLocations(freq map[string]*locationStat, n int) []string {
	stats := make([]*locationStat, 0, len(freq))
	for _, s := range freq {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		if stats[i].recency != stats[j].recency {
			return stats[i].recency < stats[j].recency
		}
		return stats[i].name < stats[j].name
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	names := make([]string, len(stats))
	for i, s := range stats {
		names[i] = s.name
	}
	return names
}
