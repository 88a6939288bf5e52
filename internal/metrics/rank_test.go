package metrics

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestRankKeysDescendingRegardlessOfInputOrder(t *testing.T) {
	items := make([]KeySummary, 0, 15)
	for i := 1; i <= 15; i++ {
		items = append(items, KeySummary{
			Key:     fmt.Sprintf("key-%d", i),
			Summary: Summary{TotalRequests: float64(i * 10)},
		})
	}
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	ranked := RankKeys(items, 10)
	if len(ranked) != 10 {
		t.Fatalf("expected 10 entities after truncation, got %d", len(ranked))
	}
	if ranked[0].Key != "key-15" {
		t.Fatalf("expected key-15 first, got %q", ranked[0].Key)
	}
	if ranked[9].Key != "key-6" {
		t.Fatalf("expected key-6 last, got %q", ranked[9].Key)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].TotalRequests > ranked[i-1].TotalRequests {
			t.Fatalf("ranking not descending at %d: %v > %v", i, ranked[i].TotalRequests, ranked[i-1].TotalRequests)
		}
	}
}

func TestRankKeysDefaultLimit(t *testing.T) {
	items := make([]KeySummary, 25)
	for i := range items {
		items[i] = KeySummary{Key: fmt.Sprintf("k%d", i), Summary: Summary{TotalRequests: float64(i)}}
	}
	ranked := RankKeys(items, 0)
	if len(ranked) != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, len(ranked))
	}
}

func TestRankBuckets(t *testing.T) {
	items := []BucketSummary{
		{BucketID: 1, Summary: Summary{TotalRequests: 5}},
		{BucketID: 2, Summary: Summary{TotalRequests: 50}},
		{BucketID: 3, Summary: Summary{TotalRequests: 20}},
	}
	ranked := RankBuckets(items, 2)
	if len(ranked) != 2 || ranked[0].BucketID != 2 || ranked[1].BucketID != 3 {
		t.Fatalf("unexpected bucket ranking: %+v", ranked)
	}
}

func TestRounding(t *testing.T) {
	if got := Round2(158.3333333); got != 158.33 {
		t.Fatalf("expected 158.33, got %v", got)
	}
	if got := Round2(83.375); got != 83.38 {
		t.Fatalf("expected 83.38, got %v", got)
	}
	if got := RoundCount(11.5); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := RoundCount(11.49); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
}
