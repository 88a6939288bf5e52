// Package geo annotates sampled IPs with a best-effort origin. Resolution
// is supplementary to the analytics result: failures degrade to an absent
// annotation, never to a request failure.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	geoip2 "github.com/oschwald/geoip2-golang"

	"github.com/ourresearch/openalex-api-analytics/internal/cache"
	"github.com/ourresearch/openalex-api-analytics/internal/domain"
)

// Resolver maps an IP address to a location.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*domain.GeoLocation, error)
	Close()
}

type maxmindResolver struct {
	db *geoip2.Reader
}

// NewMaxMind opens a GeoLite2/GeoIP2 city database file.
func NewMaxMind(path string) (Resolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &maxmindResolver{db: db}, nil
}

func (r *maxmindResolver) Resolve(_ context.Context, ip string) (*domain.GeoLocation, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("unparseable ip %q", ip)
	}
	record, err := r.db.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("geoip lookup: %w", err)
	}
	location := &domain.GeoLocation{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
	}
	return location, nil
}

func (r *maxmindResolver) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

type nopResolver struct{}

// NewNop returns a resolver that annotates nothing, used when no GeoIP
// database is configured.
func NewNop() Resolver { return nopResolver{} }

func (nopResolver) Resolve(context.Context, string) (*domain.GeoLocation, error) {
	return nil, nil
}

func (nopResolver) Close() {}

type cachedResolver struct {
	inner Resolver
	cache cache.Cache
	ttl   time.Duration
}

// NewCached wraps a resolver with the shared TTL cache.
func NewCached(inner Resolver, c cache.Cache, ttl time.Duration) Resolver {
	if c == nil || ttl <= 0 {
		return inner
	}
	return &cachedResolver{inner: inner, cache: c, ttl: ttl}
}

func (r *cachedResolver) Resolve(ctx context.Context, ip string) (*domain.GeoLocation, error) {
	cacheKey := "geo:" + ip
	if payload, ok := r.cache.Get(ctx, cacheKey); ok {
		var location *domain.GeoLocation
		if err := json.Unmarshal(payload, &location); err == nil {
			return location, nil
		}
	}
	location, err := r.inner.Resolve(ctx, ip)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(location); err == nil {
		r.cache.Set(ctx, cacheKey, payload, r.ttl)
	}
	return location, nil
}

func (r *cachedResolver) Close() {
	r.inner.Close()
}
