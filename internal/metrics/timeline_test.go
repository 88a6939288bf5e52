package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestBucketizeFloorsAndStaysSparse(t *testing.T) {
	base := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	samples := []Sample{
		{At: base.Add(1 * time.Minute), Status: 200, Weight: 4, DurationMS: 100},
		{At: base.Add(4 * time.Minute), Status: 200, Weight: 2, DurationMS: 250},
		// 12:05-12:10 has no samples at all.
		{At: base.Add(11 * time.Minute), Status: 200, Weight: 1, DurationMS: 90},
	}

	buckets, err := Bucketize(samples, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected two sparse windows, got %d", len(buckets))
	}
	if !buckets[0].WindowStart.Equal(base) {
		t.Fatalf("expected first window at %s, got %s", base, buckets[0].WindowStart)
	}
	if buckets[0].Requests != 6 {
		t.Fatalf("expected weighted count 6, got %v", buckets[0].Requests)
	}
	// (4*100 + 2*250) / 6
	if got := Round2(buckets[0].AvgResponseTimeMS()); got != 150.00 {
		t.Fatalf("expected weighted avg 150.00, got %.2f", got)
	}
	if !buckets[1].WindowStart.Equal(base.Add(10 * time.Minute)) {
		t.Fatalf("expected second window at 12:10, got %s", buckets[1].WindowStart)
	}
	for i := 1; i < len(buckets); i++ {
		if !buckets[i].WindowStart.After(buckets[i-1].WindowStart) {
			t.Fatalf("windows not ascending: %s then %s", buckets[i-1].WindowStart, buckets[i].WindowStart)
		}
	}
}

func TestBucketizeZeroWeightWindowOmitted(t *testing.T) {
	base := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	samples := []Sample{
		{At: base, Status: 200, Weight: 0, DurationMS: 50},
	}
	buckets, err := Bucketize(samples, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 0 {
		t.Fatalf("expected no windows for zero-weight samples, got %+v", buckets)
	}
}

func TestBucketizeNegativeWeightFails(t *testing.T) {
	samples := []Sample{{At: time.Now(), Weight: -2}}
	if _, err := Bucketize(samples, time.Hour); !errors.Is(err, ErrNegativeWeight) {
		t.Fatalf("expected ErrNegativeWeight, got %v", err)
	}
}

func TestBucketizeByStatusFacets(t *testing.T) {
	base := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	samples := []Sample{
		{At: base.Add(30 * time.Second), Status: 200, Weight: 3, DurationMS: 120},
		{At: base.Add(90 * time.Second), Status: 500, Weight: 1, DurationMS: 400},
		{At: base.Add(2 * time.Minute), Status: 200, Weight: 2, DurationMS: 60},
		{At: base.Add(6 * time.Minute), Status: 200, Weight: 5, DurationMS: 100},
	}

	buckets, err := BucketizeByStatus(samples, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected three (window, status) pairs, got %d", len(buckets))
	}

	first := buckets[0]
	if first.Status == nil || *first.Status != 200 || !first.WindowStart.Equal(base) {
		t.Fatalf("unexpected first facet: %+v", first)
	}
	if first.Requests != 5 {
		t.Fatalf("expected status 200 weight 5 in first window, got %v", first.Requests)
	}
	second := buckets[1]
	if second.Status == nil || *second.Status != 500 || second.Requests != 1 {
		t.Fatalf("unexpected second facet: %+v", second)
	}
	third := buckets[2]
	if !third.WindowStart.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("expected third facet in second window, got %s", third.WindowStart)
	}
}
