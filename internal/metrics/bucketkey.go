package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const bucketKeyPrefix = "anon_"

var (
	// ErrNotBucketKey marks a key that does not follow the anonymous
	// composite shape. Callers skip such rows silently: the same store
	// column carries authenticated keys in mixed queries.
	ErrNotBucketKey = errors.New("metrics: key is not an anonymous bucket key")
	// ErrInvalidBucket marks a caller-supplied bucket identifier that is
	// not a non-negative integer.
	ErrInvalidBucket = errors.New("metrics: invalid bucket identifier")
)

// ParseBucketKey decodes a composite anon_{bucket}_{status} key.
func ParseBucketKey(key string) (bucket int, status int, err error) {
	rest, ok := strings.CutPrefix(key, bucketKeyPrefix)
	if !ok {
		return 0, 0, ErrNotBucketKey
	}
	bucketPart, statusPart, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, 0, ErrNotBucketKey
	}
	bucket, err = strconv.Atoi(bucketPart)
	if err != nil || bucket < 0 {
		return 0, 0, ErrNotBucketKey
	}
	status, err = strconv.Atoi(statusPart)
	if err != nil {
		return 0, 0, ErrNotBucketKey
	}
	return bucket, status, nil
}

// FormatBucketKey encodes a composite key for one bucket and status.
func FormatBucketKey(bucket, status int) string {
	return fmt.Sprintf("%s%d_%d", bucketKeyPrefix, bucket, status)
}

// BucketKeyRange returns the half-open string range [lo, hi) matching
// every status suffix of one bucket. Bounding with the next integer's
// prefix is what keeps bucket 1 from matching anon_10_*; a plain prefix
// match is wrong for multi-digit neighbours and must not be reintroduced.
//
// At digit-count boundaries (9, 99, 999, ...) the upper bound gains a
// digit and sorts below the lower bound, so the range matches nothing
// against a lexicographic store. Those buckets resolve as empty.
func BucketKeyRange(bucket int) (lo, hi string) {
	lo = fmt.Sprintf("%s%d_", bucketKeyPrefix, bucket)
	hi = fmt.Sprintf("%s%d_", bucketKeyPrefix, bucket+1)
	return lo, hi
}

// ParseBucketID validates a caller-supplied bucket identifier.
func ParseBucketID(raw string) (int, error) {
	bucket, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || bucket < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBucket, raw)
	}
	return bucket, nil
}
