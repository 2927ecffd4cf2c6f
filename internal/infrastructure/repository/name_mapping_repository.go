package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NameMappingRepository stores pseudonym -> original identifier mappings.
type NameMappingRepository struct {
	pool *pgxpool.Pool
}

// NewNameMappingRepository creates a name mapping repository.
func NewNameMappingRepository(pool *pgxpool.Pool) *NameMappingRepository {
	return &NameMappingRepository{pool: pool}
}

// Upsert records a mapping. Re-inserting the same pseudonym refreshes the
// original value.
func (r *NameMappingRepository) Upsert(ctx context.Context, pseudonym, original string) error {
	query := `
		INSERT INTO name_mappings (pseudonym, original, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (pseudonym) DO UPDATE SET original = EXCLUDED.original
	`
	if _, err := r.pool.Exec(ctx, query, pseudonym, original); err != nil {
		return fmt.Errorf("failed to upsert name mapping: %w", err)
	}
	return nil
}

// Lookup returns the original identifier for a pseudonym.
func (r *NameMappingRepository) Lookup(ctx context.Context, pseudonym string) (string, error) {
	var original string
	err := r.pool.QueryRow(ctx,
		`SELECT original FROM name_mappings WHERE pseudonym = $1`, pseudonym,
	).Scan(&original)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up name mapping: %w", err)
	}
	return original, nil
}
