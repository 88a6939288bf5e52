package usage

import (
	"time"

	"github.com/ourresearch/openalex-api-analytics/internal/domain"
)

// Envelope wraps operation data in the API response shape shared by HTTP
// handlers and the live stream.
func Envelope(period domain.Period, data any, at time.Time) map[string]any {
	return map[string]any{
		"period":    period.Name,
		"data":      data,
		"timestamp": at.UTC().Format(time.RFC3339Nano),
	}
}

// KeyUsagePayload encodes one authenticated key's usage.
func KeyUsagePayload(u domain.KeyUsage) map[string]any {
	payload := map[string]any{
		"api_key":              u.Key,
		"total_requests":       u.TotalRequests,
		"avg_response_time_ms": u.AvgResponseTimeMS,
		"success_rate_percent": u.SuccessRatePercent,
		"requests_per_second":  u.RequestsPerSecond,
	}
	if u.Identity != nil {
		payload["identity"] = map[string]any{
			"name":         u.Identity.Name,
			"email":        u.Identity.Email,
			"organization": u.Identity.Organization,
		}
	} else {
		payload["identity"] = nil
	}
	return payload
}

// KeyUsagePayloads encodes a ranked key list, keeping order.
func KeyUsagePayloads(usages []domain.KeyUsage) []map[string]any {
	out := make([]map[string]any, len(usages))
	for i, u := range usages {
		out[i] = KeyUsagePayload(u)
	}
	return out
}

// BucketUsagePayload encodes one anonymous bucket's usage.
func BucketUsagePayload(u domain.BucketUsage) map[string]any {
	payload := map[string]any{
		"bucket":               u.BucketID,
		"total_requests":       u.TotalRequests,
		"avg_response_time_ms": u.AvgResponseTimeMS,
		"success_rate_percent": u.SuccessRatePercent,
		"requests_per_second":  u.RequestsPerSecond,
	}
	if u.IPSample != "" {
		payload["ip_sample"] = u.IPSample
	}
	if u.Location != nil {
		payload["location"] = map[string]any{
			"country": u.Location.Country,
			"city":    u.Location.City,
		}
	}
	return payload
}

// BucketUsagePayloads encodes a ranked bucket list, keeping order.
func BucketUsagePayloads(usages []domain.BucketUsage) []map[string]any {
	out := make([]map[string]any, len(usages))
	for i, u := range usages {
		out[i] = BucketUsagePayload(u)
	}
	return out
}

// TimePointPayload encodes one timeline window.
func TimePointPayload(p domain.TimePoint) map[string]any {
	payload := map[string]any{
		"window_start":         p.WindowStart.UTC().Format(time.RFC3339),
		"requests":             p.Requests,
		"avg_response_time_ms": p.AvgResponseTimeMS,
	}
	if p.StatusCode != nil {
		payload["status"] = *p.StatusCode
	}
	return payload
}

// TimePointPayloads encodes a timeline, keeping ascending window order.
func TimePointPayloads(points []domain.TimePoint) []map[string]any {
	out := make([]map[string]any, len(points))
	for i, p := range points {
		out[i] = TimePointPayload(p)
	}
	return out
}

// KeyDetailPayload encodes a single key's summary plus its timeline.
func KeyDetailPayload(d domain.KeyDetail) map[string]any {
	return map[string]any{
		"usage":    KeyUsagePayload(d.Usage),
		"timeline": TimePointPayloads(d.Timeline),
	}
}

// OverviewPayload encodes the combined dashboard snapshot.
func OverviewPayload(o domain.Overview) map[string]any {
	return map[string]any{
		"top_keys":    KeyUsagePayloads(o.TopKeys),
		"top_buckets": BucketUsagePayloads(o.TopBuckets),
		"timeline":    TimePointPayloads(o.Timeline),
	}
}
