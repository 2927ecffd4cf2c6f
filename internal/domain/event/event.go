package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccessEvent is an immutable record of one authentication/access attempt
// reported by the identity provider. The only field the core ever mutates
// is Analyzed, which is flipped once the detection engine has seen it.
type AccessEvent struct {
	ID                uuid.UUID `json:"id"`
	ProviderEventID   string    `json:"provider_event_id"`
	UserID            string    `json:"user_id"`
	UserPrincipalName string    `json:"user_principal_name"`
	Timestamp         time.Time `json:"timestamp"`

	// Connection context
	IPAddress  string `json:"ip_address"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	ClientApp  string `json:"client_app,omitempty"`

	// Authentication context
	AuthMethod        string  `json:"auth_method,omitempty"`
	ConditionalAccess string  `json:"conditional_access,omitempty"`
	Outcome           Outcome `json:"outcome"`

	Simulation bool      `json:"simulation"`
	Analyzed   bool      `json:"analyzed"`
	CreatedAt  time.Time `json:"created_at"`
}

type Outcome int

const (
	OutcomeIndeterminate Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "indeterminate"
	}
}

// ParseOutcome normalizes provider result strings, including the legacy
// Spanish-language values emitted by the original sign-in feed.
func ParseOutcome(s string) Outcome {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "correcto", "0":
		return OutcomeSuccess
	case "failure", "failed", "error":
		return OutcomeFailure
	default:
		return OutcomeIndeterminate
	}
}

// NewAccessEvent creates an access event with a fresh ID. The user ID may
// legitimately be empty (some provider events carry none); the detection
// engine skips those.
func NewAccessEvent(providerEventID, userID string, timestamp time.Time, ipAddress string) (*AccessEvent, error) {
	if providerEventID == "" {
		return nil, fmt.Errorf("provider event ID cannot be empty")
	}
	if timestamp.IsZero() {
		return nil, fmt.Errorf("timestamp cannot be zero")
	}

	return &AccessEvent{
		ID:              uuid.New(),
		ProviderEventID: providerEventID,
		UserID:          userID,
		Timestamp:       timestamp.UTC(),
		IPAddress:       ipAddress,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// MarkAnalyzed flips the idempotency flag. Re-marking has no effect.
func (e *AccessEvent) MarkAnalyzed() {
	e.Analyzed = true
}
