package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dashlytics/dashlytics/value"
)

func eventsTable(t *testing.T) *value.Table {
	t.Helper()
	tbl, err := value.NewTable(
		value.Column{Name: "ts", Values: []value.Value{
			value.Time(time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC)),  // Wednesday
			value.Time(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)), // Friday, same week
			value.Time(time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)),   // next Monday
			value.Text("not a timestamp"),
		}},
		value.Column{Name: "amount", Values: []value.Value{
			value.Int(10), value.Int(20), value.Int(30), value.Int(99),
		}},
	)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return tbl
}

func TestBucketStart(t *testing.T) {
	ts := time.Date(2024, 8, 14, 15, 42, 37, 123, time.UTC) // Wednesday

	tests := []struct {
		name     string
		interval Interval
		want     time.Time
	}{
		{name: "second", interval: IntervalSecond, want: time.Date(2024, 8, 14, 15, 42, 37, 0, time.UTC)},
		{name: "minute", interval: IntervalMinute, want: time.Date(2024, 8, 14, 15, 42, 0, 0, time.UTC)},
		{name: "hour", interval: IntervalHour, want: time.Date(2024, 8, 14, 15, 0, 0, 0, time.UTC)},
		{name: "day", interval: IntervalDay, want: time.Date(2024, 8, 14, 0, 0, 0, 0, time.UTC)},
		{name: "week starts Monday", interval: IntervalWeek, want: time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)},
		{name: "month", interval: IntervalMonth, want: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)},
		{name: "quarter aligns to July", interval: IntervalQuarter, want: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
		{name: "year", interval: IntervalYear, want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "unknown falls back to day", interval: Interval("fortnight"), want: time.Date(2024, 8, 14, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bucketStart(ts, tt.interval); !got.Equal(tt.want) {
				t.Errorf("bucketStart(%v) = %v, want %v", tt.interval, got, tt.want)
			}
		})
	}
}

func TestBucketStartSundayWeek(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2024, 8, 18, 10, 0, 0, 0, time.UTC)
	want := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	if got := bucketStart(sunday, IntervalWeek); !got.Equal(want) {
		t.Errorf("bucketStart(sunday, week) = %v, want %v", got, want)
	}
}

func TestBucketTime(t *testing.T) {
	e := New()
	tbl := eventsTable(t)

	got, err := e.BucketTime(tbl, "ts", IntervalWeek, nil, map[string][]Aggregation{
		"amount": {{Func: AggSum}},
	})
	if err != nil {
		t.Fatalf("BucketTime() error = %v", err)
	}

	// Two weeks; the unparseable row is dropped.
	if got.NumRows() != 2 {
		t.Fatalf("BucketTime() rows = %d, want 2", got.NumRows())
	}

	first, _ := got.Cell("ts", 0)
	ts, _ := first.AsTime()
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("first bucket start = %v, want %v", ts, want)
	}

	sum, _ := got.Cell("amount_sum", 0)
	if f, _ := sum.AsFloat(); f != 30 {
		t.Errorf("first week amount_sum = %v, want 30", sum)
	}
}

func TestBucketTimeIdempotent(t *testing.T) {
	// Bucketing already-bucketed timestamps is the identity on bucket starts.
	e := New()
	tbl := eventsTable(t)

	once, err := e.BucketTime(tbl, "ts", IntervalWeek, nil, nil)
	if err != nil {
		t.Fatalf("BucketTime() error = %v", err)
	}
	twice, err := e.BucketTime(once, "ts", IntervalWeek, nil, nil)
	if err != nil {
		t.Fatalf("BucketTime() second pass error = %v", err)
	}

	if once.NumRows() != twice.NumRows() {
		t.Fatalf("second pass changed row count: %d vs %d", once.NumRows(), twice.NumRows())
	}
	for i := 0; i < once.NumRows(); i++ {
		a, _ := once.Cell("ts", i)
		b, _ := twice.Cell("ts", i)
		if !a.Equal(b) {
			t.Errorf("row %d bucket start changed: %v vs %v", i, a, b)
		}
	}
}

func TestBucketTimeGroupBy(t *testing.T) {
	e := New()
	tbl, err := value.NewTable(
		value.Column{Name: "ts", Values: []value.Value{
			value.Time(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)),
			value.Time(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)),
		}},
		value.Column{Name: "region", Values: []value.Value{value.Text("west"), value.Text("east")}},
	)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	got, err := e.BucketTime(tbl, "ts", IntervalWeek, []string{"region", "missing", "region"}, nil)
	if err != nil {
		t.Fatalf("BucketTime() error = %v", err)
	}
	// Same week, two regions; the unknown and repeated group-by columns are
	// dropped.
	if got.NumRows() != 2 {
		t.Errorf("BucketTime() rows = %d, want 2", got.NumRows())
	}
	if got.NumCols() != 3 {
		t.Errorf("BucketTime() columns = %v, want [ts region count]", got.ColumnNames())
	}
	if !got.HasColumn("count") {
		t.Errorf("expected fallback count column, have %v", got.ColumnNames())
	}
}

func TestBucketTimeGroupByTimeColumn(t *testing.T) {
	// Grouping by the time column itself must not double it in the key.
	e := New()
	tbl := eventsTable(t)

	got, err := e.BucketTime(tbl, "ts", IntervalWeek, []string{"ts"}, nil)
	if err != nil {
		t.Fatalf("BucketTime() error = %v", err)
	}
	if got.NumRows() != 2 {
		t.Errorf("BucketTime() rows = %d, want 2", got.NumRows())
	}
	if got.NumCols() != 2 {
		t.Errorf("BucketTime() columns = %v, want [ts count]", got.ColumnNames())
	}
}

func TestBucketTimeMissingColumn(t *testing.T) {
	e := New()
	tbl := eventsTable(t)
	_, err := e.BucketTime(tbl, "created_at", IntervalDay, nil, nil)
	if !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("BucketTime() error = %v, want ErrColumnNotFound", err)
	}
}

func TestBucketTimeTextTimestamps(t *testing.T) {
	e := New()
	tbl, err := value.NewTable(
		value.Column{Name: "ts", Values: []value.Value{
			value.Text("2024-03-13"), value.Text("2024-03-14 10:00:00"),
		}},
	)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	got, err := e.BucketTime(tbl, "ts", IntervalMonth, nil, nil)
	if err != nil {
		t.Fatalf("BucketTime() error = %v", err)
	}
	if got.NumRows() != 1 {
		t.Fatalf("BucketTime() rows = %d, want 1", got.NumRows())
	}
	n, _ := got.Cell("count", 0)
	if f, _ := n.AsFloat(); f != 2 {
		t.Errorf("bucket count = %v, want 2", n)
	}
}
