package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Pseudonym identifiers: "user-" plus this many hex chars of the HMAC.
const pseudonymHexLen = 12

// MappingRepository persists pseudonym -> original identifier mappings so
// alerts can be re-identified by authorized operators.
type MappingRepository interface {
	Upsert(ctx context.Context, pseudonym, original string) error
}

// Pseudonymizer replaces user principal names with stable HMAC-derived
// pseudonyms before events leave the ingest boundary. The same input and
// key always produce the same pseudonym, so behavior profiles still
// accumulate per user.
type Pseudonymizer struct {
	key      []byte
	mappings MappingRepository
}

// NewPseudonymizer creates a pseudonymizer keyed with secret. mappings may
// be nil when re-identification is not needed.
func NewPseudonymizer(secret string, mappings MappingRepository) (*Pseudonymizer, error) {
	if secret == "" {
		return nil, fmt.Errorf("pseudonymizer secret cannot be empty")
	}
	return &Pseudonymizer{key: []byte(secret), mappings: mappings}, nil
}

// Pseudonymize maps an identifier to its pseudonym and records the mapping.
// Empty identifiers pass through unchanged.
func (p *Pseudonymizer) Pseudonymize(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", nil
	}

	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(strings.ToLower(identifier)))
	pseudonym := "user-" + hex.EncodeToString(mac.Sum(nil))[:pseudonymHexLen]

	if p.mappings != nil {
		if err := p.mappings.Upsert(ctx, pseudonym, identifier); err != nil {
			return "", fmt.Errorf("recording pseudonym mapping: %w", err)
		}
	}
	return pseudonym, nil
}
