package repository

import (
	"context"

	"github.com/ourresearch/openalex-api-analytics/internal/domain"
)

// IdentityRepository resolves API keys to their registered identities.
// The lookup store is read-only from this service's point of view: keys
// are provisioned by the registration flow, not here.
type IdentityRepository interface {
	GetIdentity(ctx context.Context, apiKey string) (*domain.Identity, error)
}
