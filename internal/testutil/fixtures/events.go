package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
)

// EventBuilder builds test AccessEvent entities
type EventBuilder struct {
	t   *testing.T
	evt *event.AccessEvent
}

// NewEventBuilder creates a new EventBuilder with defaults
func NewEventBuilder(t *testing.T) *EventBuilder {
	t.Helper()
	evt, err := event.NewAccessEvent(
		"evt-"+uuid.New().String()[:8],
		"user-1",
		time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		"203.0.113.10",
	)
	require.NoError(t, err)

	evt.UserPrincipalName = "user-1@example.com"
	evt.Country = "ES"
	evt.City = "Madrid"
	evt.DeviceID = "device-1"
	evt.ClientApp = "Browser"
	evt.AuthMethod = "mfa"
	evt.Outcome = event.OutcomeSuccess

	return &EventBuilder{t: t, evt: evt}
}

// WithUserID sets the user ID
func (b *EventBuilder) WithUserID(userID string) *EventBuilder {
	b.evt.UserID = userID
	return b
}

// WithUserPrincipalName sets the user principal name
func (b *EventBuilder) WithUserPrincipalName(upn string) *EventBuilder {
	b.evt.UserPrincipalName = upn
	return b
}

// WithTimestamp sets the event timestamp
func (b *EventBuilder) WithTimestamp(ts time.Time) *EventBuilder {
	b.evt.Timestamp = ts.UTC()
	return b
}

// WithIPAddress sets the source IP
func (b *EventBuilder) WithIPAddress(ip string) *EventBuilder {
	b.evt.IPAddress = ip
	return b
}

// WithLocation sets country and city
func (b *EventBuilder) WithLocation(country, city string) *EventBuilder {
	b.evt.Country = country
	b.evt.City = city
	return b
}

// WithDeviceID sets the device ID
func (b *EventBuilder) WithDeviceID(deviceID string) *EventBuilder {
	b.evt.DeviceID = deviceID
	return b
}

// WithClientApp sets the client application
func (b *EventBuilder) WithClientApp(app string) *EventBuilder {
	b.evt.ClientApp = app
	return b
}

// WithAuthMethod sets the authentication method
func (b *EventBuilder) WithAuthMethod(method string) *EventBuilder {
	b.evt.AuthMethod = method
	return b
}

// WithConditionalAccess sets the conditional access result
func (b *EventBuilder) WithConditionalAccess(result string) *EventBuilder {
	b.evt.ConditionalAccess = result
	return b
}

// WithOutcome sets the outcome
func (b *EventBuilder) WithOutcome(outcome event.Outcome) *EventBuilder {
	b.evt.Outcome = outcome
	return b
}

// WithSimulation flags the event as simulation data
func (b *EventBuilder) WithSimulation(simulation bool) *EventBuilder {
	b.evt.Simulation = simulation
	return b
}

// Build returns the constructed event
func (b *EventBuilder) Build() *event.AccessEvent {
	b.t.Helper()
	return b.evt
}
