package metrics

import (
	"fmt"
	"sort"
	"time"
)

// TimeBucket is one non-empty window of a usage timeline. Status is set
// only on status-faceted timelines. Output is sparse: a window with no
// underlying samples never appears.
type TimeBucket struct {
	WindowStart          time.Time
	Requests             float64
	ResponseTimeWeighted float64
	Status               *int
}

// AvgResponseTimeMS is the window's weighted mean response time.
func (b TimeBucket) AvgResponseTimeMS() float64 {
	if b.Requests <= 0 {
		return 0
	}
	return b.ResponseTimeWeighted / b.Requests
}

// Bucketize assigns each weighted sample to the window whose start is the
// largest span boundary at or before the sample's timestamp, and returns
// the non-empty windows ascending by start.
func Bucketize(samples []Sample, span time.Duration) ([]TimeBucket, error) {
	if span <= 0 {
		span = 5 * time.Minute
	}
	acc := make(map[time.Time]*TimeBucket)
	for _, sample := range samples {
		if sample.Weight < 0 {
			return nil, fmt.Errorf("sample at %s: %w", sample.At.Format(time.RFC3339), ErrNegativeWeight)
		}
		start := sample.At.UTC().Truncate(span)
		b := acc[start]
		if b == nil {
			b = &TimeBucket{WindowStart: start}
			acc[start] = b
		}
		b.Requests += sample.Weight
		b.ResponseTimeWeighted += sample.DurationMS * sample.Weight
	}
	out := make([]TimeBucket, 0, len(acc))
	for _, b := range acc {
		if b.Requests <= 0 {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.Before(out[j].WindowStart)
	})
	return out, nil
}

// BucketizeByStatus applies the same window flooring but groups by status
// code as well, emitting one bucket per non-empty (window, status) pair,
// ordered by window start then status. Reconstituting status codes that
// are absent from a window is the consumer's concern.
func BucketizeByStatus(samples []Sample, span time.Duration) ([]TimeBucket, error) {
	if span <= 0 {
		span = 5 * time.Minute
	}
	type facetKey struct {
		start  time.Time
		status int
	}
	acc := make(map[facetKey]*TimeBucket)
	for _, sample := range samples {
		if sample.Weight < 0 {
			return nil, fmt.Errorf("sample at %s: %w", sample.At.Format(time.RFC3339), ErrNegativeWeight)
		}
		key := facetKey{start: sample.At.UTC().Truncate(span), status: sample.Status}
		b := acc[key]
		if b == nil {
			status := sample.Status
			b = &TimeBucket{WindowStart: key.start, Status: &status}
			acc[key] = b
		}
		b.Requests += sample.Weight
		b.ResponseTimeWeighted += sample.DurationMS * sample.Weight
	}
	out := make([]TimeBucket, 0, len(acc))
	for _, b := range acc {
		if b.Requests <= 0 {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WindowStart.Equal(out[j].WindowStart) {
			return out[i].WindowStart.Before(out[j].WindowStart)
		}
		return *out[i].Status < *out[j].Status
	})
	return out, nil
}
