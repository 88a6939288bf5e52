// Package usage orchestrates the analytics read path: store queries,
// sample-weighted aggregation, ranking, identity enrichment and geo
// annotation. Every request is handled statelessly; results are rebuilt
// from the store on each call.
package usage

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ourresearch/openalex-api-analytics/internal/cache"
	"github.com/ourresearch/openalex-api-analytics/internal/domain"
	"github.com/ourresearch/openalex-api-analytics/internal/geo"
	"github.com/ourresearch/openalex-api-analytics/internal/metrics"
	"github.com/ourresearch/openalex-api-analytics/internal/repository"
	"github.com/ourresearch/openalex-api-analytics/internal/store"
)

// TelemetryStore is the query contract of the sampled time-series store.
type TelemetryStore interface {
	GroupedUsage(ctx context.Context, since time.Time, filter *store.KeyFilter) ([]metrics.GroupRow, error)
	Samples(ctx context.Context, since time.Time, filter *store.KeyFilter) ([]metrics.Sample, error)
}

// Service exposes the dashboard's aggregation operations.
type Service struct {
	store       TelemetryStore
	identities  repository.IdentityRepository
	cache       cache.Cache
	geo         geo.Resolver
	logger      *slog.Logger
	identityTTL time.Duration
	now         func() time.Time
}

// New constructs the usage service. A nil geo resolver disables origin
// annotation; identityTTL of zero disables identity caching.
func New(telemetry TelemetryStore, identities repository.IdentityRepository, c cache.Cache, resolver geo.Resolver, logger *slog.Logger, identityTTL time.Duration) *Service {
	if resolver == nil {
		resolver = geo.NewNop()
	}
	if logger != nil {
		logger = logger.With("component", "usage")
	}
	return &Service{
		store:       telemetry,
		identities:  identities,
		cache:       c,
		geo:         resolver,
		logger:      logger,
		identityTTL: identityTTL,
		now:         time.Now,
	}
}

// TopKeys returns the period's highest-traffic authenticated keys,
// ranked, truncated and then enriched. Enrichment runs only on the
// truncated top-N; it is the expensive step.
func (s *Service) TopKeys(ctx context.Context, period domain.Period, limit int) ([]domain.KeyUsage, error) {
	rows, err := s.store.GroupedUsage(ctx, period.Since(s.now()), nil)
	if err != nil {
		return nil, err
	}
	summaries, err := metrics.AggregateKeys(rows)
	if err != nil {
		return nil, err
	}
	ranked := metrics.RankKeys(summaries, limit)
	usages := make([]domain.KeyUsage, len(ranked))
	for i, summary := range ranked {
		usages[i] = keyUsage(summary, period)
	}
	s.enrichKeys(ctx, usages)
	return usages, nil
}

// TopBuckets returns the period's highest-traffic anonymous buckets with
// best-effort IP origin annotation.
func (s *Service) TopBuckets(ctx context.Context, period domain.Period, limit int) ([]domain.BucketUsage, error) {
	rows, err := s.store.GroupedUsage(ctx, period.Since(s.now()), nil)
	if err != nil {
		return nil, err
	}
	summaries, err := metrics.AggregateBuckets(rows)
	if err != nil {
		return nil, err
	}
	ranked := metrics.RankBuckets(summaries, limit)
	usages := make([]domain.BucketUsage, len(ranked))
	for i, summary := range ranked {
		usages[i] = bucketUsage(summary, period)
		s.annotateLocation(ctx, &usages[i])
	}
	return usages, nil
}

// KeyDetail returns one key's summary and timeline, fetched with two
// concurrent store queries.
func (s *Service) KeyDetail(ctx context.Context, apiKey string, period domain.Period) (*domain.KeyDetail, error) {
	since := period.Since(s.now())
	filter := &store.KeyFilter{Exact: apiKey}

	var (
		rows    []metrics.GroupRow
		samples []metrics.Sample
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.store.GroupedUsage(gctx, since, filter)
		return err
	})
	g.Go(func() error {
		var err error
		samples, err = s.store.Samples(gctx, since, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries, err := metrics.AggregateKeys(rows)
	if err != nil {
		return nil, err
	}
	usage := domain.KeyUsage{Key: apiKey}
	for _, summary := range summaries {
		if summary.Key == apiKey {
			usage = keyUsage(summary, period)
			break
		}
	}
	buckets, err := metrics.Bucketize(samples, period.WindowSpan)
	if err != nil {
		return nil, err
	}
	enriched := []domain.KeyUsage{usage}
	s.enrichKeys(ctx, enriched)
	return &domain.KeyDetail{Usage: enriched[0], Timeline: timePoints(buckets)}, nil
}

// BucketDetail returns one anonymous bucket's summary, scoped with the
// half-open key range so neighbouring buckets never leak in.
func (s *Service) BucketDetail(ctx context.Context, bucket int, period domain.Period) (*domain.BucketUsage, error) {
	lo, hi := metrics.BucketKeyRange(bucket)
	rows, err := s.store.GroupedUsage(ctx, period.Since(s.now()), &store.KeyFilter{RangeLo: lo, RangeHi: hi})
	if err != nil {
		return nil, err
	}
	summaries, err := metrics.AggregateBuckets(rows)
	if err != nil {
		return nil, err
	}
	usage := domain.BucketUsage{BucketID: bucket}
	for _, summary := range summaries {
		if summary.BucketID == bucket {
			usage = bucketUsage(summary, period)
			break
		}
	}
	s.annotateLocation(ctx, &usage)
	return &usage, nil
}

// Timeline returns the period's sparse usage timeline, optionally faceted
// by status code.
func (s *Service) Timeline(ctx context.Context, period domain.Period, byStatus bool) ([]domain.TimePoint, error) {
	samples, err := s.store.Samples(ctx, period.Since(s.now()), nil)
	if err != nil {
		return nil, err
	}
	var (
		buckets []metrics.TimeBucket
	)
	if byStatus {
		buckets, err = metrics.BucketizeByStatus(samples, period.WindowSpan)
	} else {
		buckets, err = metrics.Bucketize(samples, period.WindowSpan)
	}
	if err != nil {
		return nil, err
	}
	return timePoints(buckets), nil
}

// Overview fetches top keys, top buckets and the timeline concurrently.
// The three queries are independent, so parallel execution only helps
// latency; a failure of any one fails the snapshot.
func (s *Service) Overview(ctx context.Context, period domain.Period, limit int) (*domain.Overview, error) {
	overview := &domain.Overview{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keys, err := s.TopKeys(gctx, period, limit)
		overview.TopKeys = keys
		return err
	})
	g.Go(func() error {
		buckets, err := s.TopBuckets(gctx, period, limit)
		overview.TopBuckets = buckets
		return err
	})
	g.Go(func() error {
		timeline, err := s.Timeline(gctx, period, false)
		overview.Timeline = timeline
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

func (s *Service) annotateLocation(ctx context.Context, usage *domain.BucketUsage) {
	if usage.IPSample == "" {
		return
	}
	location, err := s.geo.Resolve(ctx, usage.IPSample)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("geo annotation failed", "ip", usage.IPSample, "error", err)
		}
		return
	}
	usage.Location = location
}

// keyUsage converts an aggregated summary into its display form. This is
// the single rounding point; everything upstream stays unrounded.
func keyUsage(summary metrics.KeySummary, period domain.Period) domain.KeyUsage {
	return domain.KeyUsage{
		Key:                summary.Key,
		TotalRequests:      metrics.RoundCount(summary.TotalRequests),
		AvgResponseTimeMS:  metrics.Round2(summary.AvgResponseTimeMS()),
		SuccessRatePercent: metrics.Round2(summary.SuccessRatePercent()),
		RequestsPerSecond:  metrics.Round2(summary.RequestsPerSecond(period.Seconds())),
	}
}

func bucketUsage(summary metrics.BucketSummary, period domain.Period) domain.BucketUsage {
	return domain.BucketUsage{
		BucketID:           summary.BucketID,
		TotalRequests:      metrics.RoundCount(summary.TotalRequests),
		AvgResponseTimeMS:  metrics.Round2(summary.AvgResponseTimeMS()),
		SuccessRatePercent: metrics.Round2(summary.SuccessRatePercent()),
		RequestsPerSecond:  metrics.Round2(summary.RequestsPerSecond(period.Seconds())),
		IPSample:           summary.IPSample,
	}
}

func timePoints(buckets []metrics.TimeBucket) []domain.TimePoint {
	points := make([]domain.TimePoint, len(buckets))
	for i, bucket := range buckets {
		points[i] = domain.TimePoint{
			WindowStart:       bucket.WindowStart,
			Requests:          metrics.RoundCount(bucket.Requests),
			AvgResponseTimeMS: metrics.Round2(bucket.AvgResponseTimeMS()),
			StatusCode:        bucket.Status,
		}
	}
	return points
}
