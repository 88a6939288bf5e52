package geo

import (
	"context"
	"testing"
	"time"

	"github.com/ourresearch/openalex-api-analytics/internal/cache"
	"github.com/ourresearch/openalex-api-analytics/internal/domain"
)

type countingResolver struct {
	calls    int
	location *domain.GeoLocation
}

func (r *countingResolver) Resolve(context.Context, string) (*domain.GeoLocation, error) {
	r.calls++
	return r.location, nil
}

func (r *countingResolver) Close() {}

func TestCachedResolverHitsInnerOnce(t *testing.T) {
	inner := &countingResolver{location: &domain.GeoLocation{Country: "Germany", City: "Berlin"}}
	c := cache.NewMemoryCache(nil)
	defer c.Close()

	resolver := NewCached(inner, c, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		location, err := resolver.Resolve(ctx, "203.0.113.9")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if location == nil || location.Country != "Germany" {
			t.Fatalf("unexpected location %+v", location)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one inner lookup, got %d", inner.calls)
	}
}

func TestCachedResolverCachesAbsence(t *testing.T) {
	inner := &countingResolver{location: nil}
	c := cache.NewMemoryCache(nil)
	defer c.Close()

	resolver := NewCached(inner, c, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		location, err := resolver.Resolve(ctx, "192.0.2.1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if location != nil {
			t.Fatalf("expected nil location, got %+v", location)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected absence to be cached, inner called %d times", inner.calls)
	}
}

func TestNewCachedWithoutTTLReturnsInner(t *testing.T) {
	inner := &countingResolver{}
	if got := NewCached(inner, nil, time.Minute); got != Resolver(inner) {
		t.Fatalf("expected inner resolver back without a cache")
	}
}
