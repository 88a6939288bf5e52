package store

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/ourresearch/openalex-api-analytics/internal/metrics"
)

// ErrMalformedRow marks a store row whose fields could not be coerced to
// their expected types. The store returns loosely-typed records and
// numerics may arrive as strings; coercion failures surface here instead
// of letting NaN or concatenated strings leak into aggregation.
var ErrMalformedRow = errors.New("store: malformed row")

func coerceGroupRow(record map[string]any) (metrics.GroupRow, error) {
	keyID, err := cast.ToStringE(record[colKeyID])
	if err != nil {
		return metrics.GroupRow{}, fmt.Errorf("%w: %s: %v", ErrMalformedRow, colKeyID, err)
	}
	status, err := cast.ToIntE(record[colStatus])
	if err != nil {
		return metrics.GroupRow{}, fmt.Errorf("%w: %s: %v", ErrMalformedRow, colStatus, err)
	}
	weight, err := coerceFloat(record, aliasRequests)
	if err != nil {
		return metrics.GroupRow{}, err
	}
	durationWeighted, err := coerceFloat(record, aliasDurationWeight)
	if err != nil {
		return metrics.GroupRow{}, err
	}
	successWeight, err := coerceFloat(record, aliasSuccessWeight)
	if err != nil {
		return metrics.GroupRow{}, err
	}
	ipSample := cast.ToString(record[aliasIPSample])

	return metrics.GroupRow{
		Identity:             metrics.ParseRowIdentity(keyID),
		Status:               status,
		IPSample:             ipSample,
		Weight:               weight,
		ResponseTimeWeighted: durationWeighted,
		SuccessWeight:        successWeight,
	}, nil
}

func coerceSampleRow(record map[string]any) (metrics.Sample, error) {
	at, err := cast.ToTimeE(record[colTS])
	if err != nil {
		return metrics.Sample{}, fmt.Errorf("%w: %s: %v", ErrMalformedRow, colTS, err)
	}
	status, err := cast.ToIntE(record[colStatus])
	if err != nil {
		return metrics.Sample{}, fmt.Errorf("%w: %s: %v", ErrMalformedRow, colStatus, err)
	}
	weight, err := coerceFloat(record, colWeight)
	if err != nil {
		return metrics.Sample{}, err
	}
	duration, err := coerceFloat(record, colDurationMS)
	if err != nil {
		return metrics.Sample{}, err
	}
	return metrics.Sample{
		At:         at.UTC(),
		Status:     status,
		Weight:     weight,
		DurationMS: duration,
	}, nil
}

// coerceFloat converts a numeric field that may arrive as a string. A
// missing field coerces to zero; the store omits aggregates with no
// contributing rows.
func coerceFloat(record map[string]any, field string) (float64, error) {
	value, ok := record[field]
	if !ok || value == nil {
		return 0, nil
	}
	parsed, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedRow, field, err)
	}
	return parsed, nil
}
