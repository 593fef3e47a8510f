package engine

import (
	"fmt"
	"time"

	"github.com/dashlytics/dashlytics/value"
)

// Interval is a calendar bucketing granularity. Buckets are half-open
// [start, end) ranges aligned to calendar boundaries.
type Interval string

const (
	IntervalSecond  Interval = "second"
	IntervalMinute  Interval = "minute"
	IntervalHour    Interval = "hour"
	IntervalDay     Interval = "day"
	IntervalWeek    Interval = "week"
	IntervalMonth   Interval = "month"
	IntervalQuarter Interval = "quarter"
	IntervalYear    Interval = "year"
)

// BucketTime maps the time column to calendar-interval bucket starts and
// aggregates per bucket. Rows whose time value cannot be coerced to a
// timestamp are dropped before bucketing. Extra group-by columns extend the
// grouping key (bucket_start, group_by...); group-by columns absent from
// the table, repeated, or naming the time column itself are dropped from
// the key with a warning. Without aggregations
// the reduction defaults to a per-bucket row count. Output rows are sorted
// ascending by bucket start; empty buckets are not synthesized.
//
// A missing time column is fatal.
func (e *Engine) BucketTime(t *value.Table, timeColumn string, interval Interval, groupBy []string, aggs map[string][]Aggregation) (*value.Table, error) {
	src, ok := t.Column(timeColumn)
	if !ok {
		return nil, fmt.Errorf("%w: time column %q", ErrColumnNotFound, timeColumn)
	}

	keep := make([]int, 0, len(src))
	starts := make([]value.Value, 0, len(src))
	for r, v := range src {
		ts, ok := v.AsTime()
		if !ok {
			continue
		}
		keep = append(keep, r)
		starts = append(starts, value.Time(bucketStart(ts, interval)))
	}

	parsed := t.Select(keep)
	cols := make([]value.Column, 0, parsed.NumCols())
	for _, name := range parsed.ColumnNames() {
		if name == timeColumn {
			cols = append(cols, value.Column{Name: name, Values: starts})
			continue
		}
		vals, _ := parsed.Column(name)
		cols = append(cols, value.Column{Name: name, Values: vals})
	}
	bucketed, err := value.NewTable(cols...)
	if err != nil {
		return nil, err
	}

	keyCols := []string{timeColumn}
	seen := map[string]bool{timeColumn: true}
	for _, col := range groupBy {
		if seen[col] {
			e.log.Warn("dropping duplicate group-by column from time bucketing", "column", col)
			continue
		}
		if !bucketed.HasColumn(col) {
			e.log.Warn("dropping unknown group-by column from time bucketing", "column", col)
			continue
		}
		seen[col] = true
		keyCols = append(keyCols, col)
	}

	result, err := Aggregate(bucketed, keyCols, aggs)
	if err != nil {
		return nil, err
	}
	return Sort(result, []SortKey{{Column: timeColumn, Ascending: true}}), nil
}

// bucketStart truncates a timestamp to the start of its calendar bucket.
// Weeks start on Monday 00:00, quarters on the first day of Jan/Apr/Jul/Oct.
func bucketStart(ts time.Time, interval Interval) time.Time {
	y, m, d := ts.Date()
	loc := ts.Location()
	switch interval {
	case IntervalSecond:
		return time.Date(y, m, d, ts.Hour(), ts.Minute(), ts.Second(), 0, loc)
	case IntervalMinute:
		return time.Date(y, m, d, ts.Hour(), ts.Minute(), 0, 0, loc)
	case IntervalHour:
		return time.Date(y, m, d, ts.Hour(), 0, 0, 0, loc)
	case IntervalWeek:
		daysSinceMonday := (int(ts.Weekday()) + 6) % 7
		return time.Date(y, m, d-daysSinceMonday, 0, 0, 0, 0, loc)
	case IntervalMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case IntervalQuarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, loc)
	case IntervalYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		// Unrecognized intervals fall back to daily buckets.
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}
