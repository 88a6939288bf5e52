// Package metrics implements the sampling-correct aggregation core: weighted
// summaries over adaptively sampled telemetry rows, anonymous bucket key
// handling, timeline bucketing and result ranking.
//
// The store discards rows under load and scales up the sample weight of the
// survivors, so every "count" in this package is a sum of weights, never a
// row count.
package metrics

import "time"

// IdentityKind tags a row as authenticated or anonymous traffic.
type IdentityKind int

const (
	// IdentityAuthenticated rows carry a real API key.
	IdentityAuthenticated IdentityKind = iota
	// IdentityAnonymous rows carry a composite anon_{bucket}_{status} key.
	IdentityAnonymous
)

// RowIdentity is the decoded identity of a raw row, produced once at
// coercion time so downstream aggregation never re-inspects key strings.
type RowIdentity struct {
	Kind   IdentityKind
	Key    string
	Bucket int
}

// ParseRowIdentity decodes a key column value. Values matching the
// anonymous composite shape become bucket identities; everything else is
// treated as an authenticated API key.
func ParseRowIdentity(keyID string) RowIdentity {
	if bucket, _, err := ParseBucketKey(keyID); err == nil {
		return RowIdentity{Kind: IdentityAnonymous, Key: keyID, Bucket: bucket}
	}
	return RowIdentity{Kind: IdentityAuthenticated, Key: keyID}
}

// GroupRow is one typed row from a grouped usage query. Weight is the
// number of real requests the row stands in for; ResponseTimeWeighted and
// SuccessWeight are pre-multiplied by the store.
type GroupRow struct {
	Identity             RowIdentity
	Status               int
	IPSample             string
	Weight               float64
	ResponseTimeWeighted float64
	SuccessWeight        float64
}

// Sample is one raw weighted sample consumed by the timeline bucketizer.
type Sample struct {
	At         time.Time
	Status     int
	Weight     float64
	DurationMS float64
}
