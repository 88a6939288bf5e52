package metrics

import (
	"errors"
	"fmt"
)

// ErrNegativeWeight marks a data integrity failure: sample weights are
// multipliers and can never be negative. It is surfaced, not clamped.
var ErrNegativeWeight = errors.New("metrics: negative sample weight")

// Summary accumulates the weighted totals for one primary key across all
// of its status codes. Derived values are computed on demand so rounding
// happens exactly once, at the response boundary.
type Summary struct {
	TotalRequests        float64
	SuccessfulRequests   float64
	ResponseTimeWeighted float64
}

// AvgResponseTimeMS is the weighted mean response time.
func (s Summary) AvgResponseTimeMS() float64 {
	if s.TotalRequests <= 0 {
		return 0
	}
	return s.ResponseTimeWeighted / s.TotalRequests
}

// SuccessRatePercent is the share of requests with 2xx status.
func (s Summary) SuccessRatePercent() float64 {
	if s.TotalRequests <= 0 {
		return 0
	}
	return 100 * s.SuccessfulRequests / s.TotalRequests
}

// RequestsPerSecond divides the total by the period length in seconds.
func (s Summary) RequestsPerSecond(periodSeconds float64) float64 {
	if periodSeconds <= 0 {
		return 0
	}
	return s.TotalRequests / periodSeconds
}

func (s *Summary) add(row GroupRow) {
	s.TotalRequests += row.Weight
	s.SuccessfulRequests += row.SuccessWeight
	s.ResponseTimeWeighted += row.ResponseTimeWeighted
}

// KeySummary is one authenticated key's merged usage.
type KeySummary struct {
	Key string
	Summary
}

// BucketSummary is one anonymous bucket's merged usage. IPSample is an
// arbitrary address seen in one of the bucket's rows.
type BucketSummary struct {
	BucketID int
	IPSample string
	Summary
}

// AggregateKeys collapses grouped rows into one summary per authenticated
// API key, summing weights across status codes. Anonymous rows are
// skipped; entities whose total weight is zero are not emitted.
func AggregateKeys(rows []GroupRow) ([]KeySummary, error) {
	acc := make(map[string]*Summary)
	for _, row := range rows {
		if row.Identity.Kind != IdentityAuthenticated || row.Identity.Key == "" {
			continue
		}
		if err := checkWeights(row); err != nil {
			return nil, fmt.Errorf("key %q: %w", row.Identity.Key, err)
		}
		s := acc[row.Identity.Key]
		if s == nil {
			s = &Summary{}
			acc[row.Identity.Key] = s
		}
		s.add(row)
	}
	out := make([]KeySummary, 0, len(acc))
	for key, s := range acc {
		if s.TotalRequests <= 0 {
			continue
		}
		out = append(out, KeySummary{Key: key, Summary: *s})
	}
	return out, nil
}

// AggregateBuckets collapses grouped rows into one summary per anonymous
// bucket: every anon_{id}_{status} variant of a bucket merges into a
// single entity. Authenticated rows are skipped.
func AggregateBuckets(rows []GroupRow) ([]BucketSummary, error) {
	type bucketAcc struct {
		summary  Summary
		ipSample string
	}
	acc := make(map[int]*bucketAcc)
	for _, row := range rows {
		if row.Identity.Kind != IdentityAnonymous {
			continue
		}
		if err := checkWeights(row); err != nil {
			return nil, fmt.Errorf("bucket %d: %w", row.Identity.Bucket, err)
		}
		b := acc[row.Identity.Bucket]
		if b == nil {
			b = &bucketAcc{}
			acc[row.Identity.Bucket] = b
		}
		b.summary.add(row)
		if b.ipSample == "" && row.IPSample != "" {
			b.ipSample = row.IPSample
		}
	}
	out := make([]BucketSummary, 0, len(acc))
	for bucket, b := range acc {
		if b.summary.TotalRequests <= 0 {
			continue
		}
		out = append(out, BucketSummary{BucketID: bucket, IPSample: b.ipSample, Summary: b.summary})
	}
	return out, nil
}

func checkWeights(row GroupRow) error {
	if row.Weight < 0 || row.SuccessWeight < 0 {
		return ErrNegativeWeight
	}
	return nil
}
