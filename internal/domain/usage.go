package domain

import "time"

// Identity describes the registered owner of an API key. A nil *Identity
// means no record is on file, which is distinct from a record whose fields
// are blank.
type Identity struct {
	Name         string
	Email        string
	Organization string
}

// GeoLocation is a best-effort origin annotation for a sampled IP.
type GeoLocation struct {
	Country string
	City    string
}

// KeyUsage is the aggregated usage of one authenticated API key over a
// period. Numeric fields are display-rounded: counts to whole requests,
// rates and averages to two decimals.
type KeyUsage struct {
	Key                string
	TotalRequests      int64
	AvgResponseTimeMS  float64
	SuccessRatePercent float64
	RequestsPerSecond  float64
	Identity           *Identity
}

// BucketUsage is the aggregated usage of one anonymous traffic bucket.
// The IP sample is non-authoritative: an arbitrary address seen in one of
// the bucket's rows.
type BucketUsage struct {
	BucketID           int
	TotalRequests      int64
	AvgResponseTimeMS  float64
	SuccessRatePercent float64
	RequestsPerSecond  float64
	IPSample           string
	Location           *GeoLocation
}

// TimePoint is one non-empty window on a usage timeline. StatusCode is set
// only on status-faceted timelines.
type TimePoint struct {
	WindowStart       time.Time
	Requests          int64
	AvgResponseTimeMS float64
	StatusCode        *int
}

// KeyDetail combines a single key's period summary with its timeline.
type KeyDetail struct {
	Usage    KeyUsage
	Timeline []TimePoint
}

// Overview is the combined dashboard snapshot.
type Overview struct {
	TopKeys    []KeyUsage
	TopBuckets []BucketUsage
	Timeline   []TimePoint
}
