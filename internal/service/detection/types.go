package detection

import (
	"time"
)

// SignalResult is the outcome of evaluating one signal against one
// (event, profile) pair. Score is always in [0.0, 1.0].
type SignalResult struct {
	Signal      string  `json:"signal"`
	Score       float64 `json:"score"`
	Triggered   bool    `json:"triggered"`
	Description string  `json:"description"`
}

// TimeRange is a (start, end) pair of times-of-day expressed as offsets
// from midnight. When Start > End the range crosses midnight, e.g.
// 22:00-02:00.
type TimeRange struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// TimeOfDay returns t's offset from midnight in its own location.
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

// Contains reports whether tod falls inside the range, honoring the
// midnight wraparound case.
func (r TimeRange) Contains(tod time.Duration) bool {
	if r.Start <= r.End {
		return tod >= r.Start && tod <= r.End
	}
	return tod >= r.Start || tod <= r.End
}

// DistanceMinutes returns how far outside the range tod is, in minutes.
// Inside the range the distance is zero. For a wrapping range the distance
// is to the nearest bound.
func (r TimeRange) DistanceMinutes(tod time.Duration) float64 {
	if r.Contains(tod) {
		return 0
	}
	if r.Start <= r.End {
		if tod < r.Start {
			return (r.Start - tod).Minutes()
		}
		return (tod - r.End).Minutes()
	}
	// Wrapping range: tod lies in the gap between End and Start.
	toEnd := (tod - r.End).Minutes()
	toStart := (r.Start - tod).Minutes()
	if toEnd < toStart {
		return toEnd
	}
	return toStart
}

// BehaviorProfile is a window-bounded statistical summary of a user's
// historical access patterns. It is rebuilt for every analysis and never
// persisted as its own entity.
type BehaviorProfile struct {
	UserID string

	// Top 5 most frequent, ties broken by most recent occurrence.
	CommonCountries []string
	CommonCities    []string

	// Up to 20 most recent distinct IPs.
	CommonIPs []string

	// Full distinct sets observed in the window.
	KnownDevices     []string
	UsualAuthMethods []string
	CommonApps       []string

	// Typical time-of-day range per weekday, raw min/max with no
	// smoothing or outlier removal.
	TypicalHours map[time.Weekday]TimeRange

	TotalAccessCount      int
	SuccessfulAccessCount int
	FailedAccessCount     int

	BuiltAt     time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// HasCountry reports whether the country is one of the user's common ones.
func (p *BehaviorProfile) HasCountry(country string) bool {
	return containsString(p.CommonCountries, country)
}

// HasCity reports whether the city is one of the user's common ones.
func (p *BehaviorProfile) HasCity(city string) bool {
	return containsString(p.CommonCities, city)
}

// HasIP reports whether the IP is among the recent known IPs.
func (p *BehaviorProfile) HasIP(ip string) bool {
	return containsString(p.CommonIPs, ip)
}

// HasDevice reports whether the device id has been seen before.
func (p *BehaviorProfile) HasDevice(deviceID string) bool {
	return containsString(p.KnownDevices, deviceID)
}

// HasAuthMethod reports whether the user normally authenticates this way.
func (p *BehaviorProfile) HasAuthMethod(method string) bool {
	return containsString(p.UsualAuthMethods, method)
}
