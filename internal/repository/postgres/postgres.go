package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ourresearch/openalex-api-analytics/internal/domain"
	"github.com/ourresearch/openalex-api-analytics/internal/repository"
)

// Repository implements lookup interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.IdentityRepository = (*Repository)(nil)

// GetIdentity fetches the registered identity for an API key. Absence is
// reported as repository.ErrNotFound, never as a blank record.
func (r *Repository) GetIdentity(ctx context.Context, apiKey string) (*domain.Identity, error) {
	const query = `SELECT name, email, organization FROM api_keys WHERE key = $1`
	row := r.pool.QueryRow(ctx, query, apiKey)
	var identity domain.Identity
	if err := row.Scan(&identity.Name, &identity.Email, &identity.Organization); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}
