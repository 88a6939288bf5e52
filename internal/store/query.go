// Package store is the HTTP client for the external sampled telemetry
// store. The store applies lossy adaptive sampling, so correctness under
// sampling is pushed into the query expressions themselves: counts are
// sums of sample_weight and averages are weighted sums divided by weight
// sums, never row counts.
package store

import (
	"fmt"
	"time"
)

// Store column and alias names shared by the query builder and coercion.
const (
	colKeyID      = "key_id"
	colStatus     = "status"
	colTS         = "ts"
	colWeight     = "sample_weight"
	colDurationMS = "duration_ms"

	aliasRequests       = "requests"
	aliasDurationWeight = "duration_weighted"
	aliasSuccessWeight  = "success_weight"
	aliasIPSample       = "ip_sample"
)

// Aggregate is one selected weighted aggregate expression.
type Aggregate struct {
	Alias string `json:"alias"`
	Expr  string `json:"expr"`
}

// Filter is one predicate on a store column. Supported ops: =, >=, <.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Query is a fully-formed expression against a named dataset. Limit is
// always set: it is the backpressure valve that bounds memory under
// traffic spikes.
type Query struct {
	Dataset    string      `json:"dataset"`
	Start      time.Time   `json:"start"`
	GroupBy    []string    `json:"group_by,omitempty"`
	Aggregates []Aggregate `json:"aggregates,omitempty"`
	Fields     []string    `json:"fields,omitempty"`
	Filters    []Filter    `json:"filters,omitempty"`
	Limit      int         `json:"limit"`
}

// KeyFilter narrows a query to one key or to a half-open key range.
type KeyFilter struct {
	Exact   string
	RangeLo string
	RangeHi string
}

func (f *KeyFilter) filters() []Filter {
	if f == nil {
		return nil
	}
	if f.Exact != "" {
		return []Filter{{Field: colKeyID, Op: "=", Value: f.Exact}}
	}
	if f.RangeLo != "" || f.RangeHi != "" {
		return []Filter{
			{Field: colKeyID, Op: ">=", Value: f.RangeLo},
			{Field: colKeyID, Op: "<", Value: f.RangeHi},
		}
	}
	return nil
}

func sumWeight() Aggregate {
	return Aggregate{Alias: aliasRequests, Expr: fmt.Sprintf("sum(%s)", colWeight)}
}

func weightedSum(field, alias string) Aggregate {
	return Aggregate{Alias: alias, Expr: fmt.Sprintf("sum(%s * %s)", field, colWeight)}
}

func successWeightSum() Aggregate {
	return Aggregate{
		Alias: aliasSuccessWeight,
		Expr:  fmt.Sprintf("sum(%s) filter (%s >= 200 and %s < 300)", colWeight, colStatus, colStatus),
	}
}

func anySample(field, alias string) Aggregate {
	return Aggregate{Alias: alias, Expr: fmt.Sprintf("any(%s)", field)}
}

func (c *Client) groupedQuery(since time.Time, filter *KeyFilter) Query {
	return Query{
		Dataset: c.dataset,
		Start:   since,
		GroupBy: []string{colKeyID, colStatus},
		Aggregates: []Aggregate{
			sumWeight(),
			weightedSum(colDurationMS, aliasDurationWeight),
			successWeightSum(),
			anySample("ip", aliasIPSample),
		},
		Filters: filter.filters(),
		Limit:   c.maxGroups,
	}
}

func (c *Client) samplesQuery(since time.Time, filter *KeyFilter) Query {
	return Query{
		Dataset: c.dataset,
		Start:   since,
		Fields:  []string{colTS, colStatus, colWeight, colDurationMS},
		Filters: filter.filters(),
		Limit:   c.maxSamples,
	}
}
