package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ourresearch/openalex-api-analytics/internal/metrics"
)

func TestGroupedUsageSendsWeightedQuery(t *testing.T) {
	since := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	var captured Query

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != queryPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("missing store token, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode query: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"rows": []map[string]any{
			{
				"key_id":            "k1",
				"status":            "200",
				"requests":          "10.0",
				"duration_weighted": 1500,
				"success_weight":    "10",
				"ip_sample":         nil,
			},
		}})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "api_requests", WithToken("tok-1"), WithRowCaps(500, 1000))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	rows, err := client.GroupedUsage(context.Background(), since, nil)
	if err != nil {
		t.Fatalf("grouped usage: %v", err)
	}

	if captured.Dataset != "api_requests" {
		t.Fatalf("unexpected dataset %q", captured.Dataset)
	}
	if !captured.Start.Equal(since) {
		t.Fatalf("unexpected start %s", captured.Start)
	}
	if captured.Limit != 500 {
		t.Fatalf("expected row cap 500, got %d", captured.Limit)
	}
	if len(captured.GroupBy) != 2 || captured.GroupBy[0] != "key_id" || captured.GroupBy[1] != "status" {
		t.Fatalf("unexpected group by %v", captured.GroupBy)
	}
	foundWeightSum := false
	for _, agg := range captured.Aggregates {
		if agg.Alias == "requests" && agg.Expr == "sum(sample_weight)" {
			foundWeightSum = true
		}
	}
	if !foundWeightSum {
		t.Fatalf("count aggregate must be sum(sample_weight): %+v", captured.Aggregates)
	}

	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	row := rows[0]
	if row.Identity.Kind != metrics.IdentityAuthenticated || row.Identity.Key != "k1" {
		t.Fatalf("unexpected identity %+v", row.Identity)
	}
	if row.Weight != 10 || row.ResponseTimeWeighted != 1500 || row.SuccessWeight != 10 {
		t.Fatalf("string numerics not coerced: %+v", row)
	}
}

func TestGroupedUsageKeyRangeFilter(t *testing.T) {
	var captured Query
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{"rows": []map[string]any{}})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "api_requests")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	lo, hi := metrics.BucketKeyRange(1)
	rows, err := client.GroupedUsage(context.Background(), time.Now(), &KeyFilter{RangeLo: lo, RangeHi: hi})
	if err != nil {
		t.Fatalf("grouped usage: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("empty result set must not be an error, got %d rows", len(rows))
	}

	if len(captured.Filters) != 2 {
		t.Fatalf("expected two range filters, got %+v", captured.Filters)
	}
	if captured.Filters[0].Op != ">=" || captured.Filters[0].Value != "anon_1_" {
		t.Fatalf("unexpected lower bound filter %+v", captured.Filters[0])
	}
	if captured.Filters[1].Op != "<" || captured.Filters[1].Value != "anon_2_" {
		t.Fatalf("unexpected upper bound filter %+v", captured.Filters[1])
	}
}

func TestExecuteSurfacesStoreFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "shard unavailable"})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "api_requests")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GroupedUsage(context.Background(), time.Now(), nil)
	var qerr QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if qerr.Status != http.StatusBadGateway || qerr.Message != "shard unavailable" {
		t.Fatalf("unexpected query error %+v", qerr)
	}
}

func TestSamplesQueryShape(t *testing.T) {
	var captured Query
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{"rows": []map[string]any{
			{"ts": "2026-02-01T10:03:00Z", "status": 200, "sample_weight": "2.5", "duration_ms": "120"},
		}})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "api_requests", WithRowCaps(0, 777))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	samples, err := client.Samples(context.Background(), time.Now(), nil)
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if captured.Limit != 777 {
		t.Fatalf("expected sample row cap 777, got %d", captured.Limit)
	}
	if len(captured.GroupBy) != 0 {
		t.Fatalf("sample query must not group, got %v", captured.GroupBy)
	}
	if len(samples) != 1 {
		t.Fatalf("expected one sample, got %d", len(samples))
	}
	s := samples[0]
	if s.Weight != 2.5 || s.DurationMS != 120 || s.Status != 200 {
		t.Fatalf("sample not coerced: %+v", s)
	}
	if !s.At.Equal(time.Date(2026, time.February, 1, 10, 3, 0, 0, time.UTC)) {
		t.Fatalf("unexpected sample time %s", s.At)
	}
}
