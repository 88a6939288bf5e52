package metrics

import (
	"math"
	"sort"
)

// DefaultLimit is the number of entities kept when the caller does not
// supply a limit. No upper bound is enforced here; the store-side row cap
// is the real ceiling.
const DefaultLimit = 10

// RankKeys sorts summaries strictly descending by total requests and keeps
// the top limit entries. The sort is stable, so ties keep their input
// order; input order itself is not guaranteed deterministic by the store.
func RankKeys(items []KeySummary, limit int) []KeySummary {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TotalRequests > items[j].TotalRequests
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// RankBuckets applies the same ordering and truncation to bucket summaries.
func RankBuckets(items []BucketSummary, limit int) []BucketSummary {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TotalRequests > items[j].TotalRequests
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Round2 rounds to two decimal places for display. Intermediate values are
// never rounded; compounding error through the weighted averages would
// skew the results.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundCount rounds a weighted request count to a whole number of requests.
func RoundCount(v float64) int64 {
	return int64(math.Round(v))
}
