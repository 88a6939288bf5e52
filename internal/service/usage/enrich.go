package usage

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/ourresearch/openalex-api-analytics/internal/domain"
	"github.com/ourresearch/openalex-api-analytics/internal/repository"
)

// enrichConcurrency bounds the identity lookup fan-out. The input is
// already truncated to the requested limit, so this is a ceiling, not the
// usual bound.
const enrichConcurrency = 8

// enrichKeys attaches registered identities to aggregated key usages in
// place, preserving rank order. Lookup failures are non-fatal: identity
// is supplementary to the analytics result, so a failed or missing lookup
// leaves the Identity pointer nil.
func (s *Service) enrichKeys(ctx context.Context, usages []domain.KeyUsage) {
	if s.identities == nil || len(usages) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range usages {
		i := i
		g.Go(func() error {
			usages[i].Identity = s.lookupIdentity(gctx, usages[i].Key)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) lookupIdentity(ctx context.Context, apiKey string) *domain.Identity {
	cacheKey := "identity:" + apiKey
	if s.cache != nil && s.identityTTL > 0 {
		if payload, ok := s.cache.Get(ctx, cacheKey); ok {
			var identity *domain.Identity
			if err := json.Unmarshal(payload, &identity); err == nil {
				return identity
			}
		}
	}

	identity, err := s.identities.GetIdentity(ctx, apiKey)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		if s.logger != nil {
			s.logger.Warn("identity lookup failed", "error", err)
		}
		return nil
	}

	if s.cache != nil && s.identityTTL > 0 {
		// Absence is cached too, as a JSON null, so unknown keys do not
		// hammer the lookup store on every refresh.
		if payload, err := json.Marshal(identity); err == nil {
			s.cache.Set(ctx, cacheKey, payload, s.identityTTL)
		}
	}
	return identity
}
