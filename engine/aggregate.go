package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dashlytics/dashlytics/value"
)

// AggFunc names a reduction function.
type AggFunc string

const (
	AggSum    AggFunc = "sum"
	AggAvg    AggFunc = "avg"
	AggCount  AggFunc = "count"
	AggMin    AggFunc = "min"
	AggMax    AggFunc = "max"
	AggStd    AggFunc = "std"
	AggVar    AggFunc = "var"
	AggMedian AggFunc = "median"
)

// Aggregation requests one reduction of a column. An empty Alias defaults
// to "{column}_{function}".
type Aggregation struct {
	Func  AggFunc
	Alias string
}

func (a Aggregation) aliasFor(column string) string {
	if a.Alias != "" {
		return a.Alias
	}
	return column + "_" + string(a.Func)
}

// group is one partition of rows sharing a distinct group-key tuple.
type group struct {
	firstRow int
	rows     []int
}

// Aggregate groups rows by the distinct tuple of group-key values and
// reduces the requested columns. With group-by columns, the result holds
// one row per distinct key tuple (keys bucket by value equality; null is
// its own bucket); without them, a single row. Aggregations over columns
// absent from the table are silently skipped. If no aggregations apply and
// a grouping exists, the result is a per-group row count labeled "count".
//
// A group-by column absent from the table is fatal: grouping by a column
// that does not exist has no unambiguous meaning.
func Aggregate(t *value.Table, groupBy []string, aggs map[string][]Aggregation) (*value.Table, error) {
	for _, col := range groupBy {
		if !t.HasColumn(col) {
			return nil, fmt.Errorf("%w: group-by column %q", ErrColumnNotFound, col)
		}
	}

	if len(groupBy) == 0 {
		return aggregateAll(t, aggs)
	}

	// Hash-based grouping, preserving first-appearance order for
	// deterministic output.
	groups := make(map[string]*group)
	order := make([]*group, 0)
	var key strings.Builder
	for r := 0; r < t.NumRows(); r++ {
		key.Reset()
		for i, col := range groupBy {
			if i > 0 {
				key.WriteString("\x00||\x00")
			}
			key.WriteString(col)
			key.WriteString("\x00:\x00")
			cell, _ := t.Cell(col, r)
			cell.AppendKey(&key)
		}
		k := key.String()
		if g, ok := groups[k]; ok {
			g.rows = append(g.rows, r)
		} else {
			g = &group{firstRow: r, rows: []int{r}}
			groups[k] = g
			order = append(order, g)
		}
	}

	cols := make([]value.Column, 0, len(groupBy)+len(aggs))
	for _, name := range groupBy {
		src, _ := t.Column(name)
		vals := make([]value.Value, len(order))
		for i, g := range order {
			vals[i] = src[g.firstRow]
		}
		cols = append(cols, value.Column{Name: name, Values: vals})
	}

	produced := 0
	for _, name := range sortedColumns(aggs) {
		src, ok := t.Column(name)
		if !ok {
			continue
		}
		for _, agg := range aggs[name] {
			vals := make([]value.Value, len(order))
			for i, g := range order {
				vals[i] = reduce(agg.Func, src, g.rows)
			}
			cols = append(cols, value.Column{Name: agg.aliasFor(name), Values: vals})
			produced++
		}
	}

	if produced == 0 {
		vals := make([]value.Value, len(order))
		for i, g := range order {
			vals[i] = value.Int(int64(len(g.rows)))
		}
		cols = append(cols, value.Column{Name: "count", Values: vals})
	}

	return value.NewTable(cols...)
}

// aggregateAll reduces the whole table to a single row, one column per
// requested (column, function) pair.
func aggregateAll(t *value.Table, aggs map[string][]Aggregation) (*value.Table, error) {
	rows := make([]int, t.NumRows())
	for i := range rows {
		rows[i] = i
	}

	cols := make([]value.Column, 0, len(aggs))
	for _, name := range sortedColumns(aggs) {
		src, ok := t.Column(name)
		if !ok {
			continue
		}
		for _, agg := range aggs[name] {
			cols = append(cols, value.Column{
				Name:   agg.aliasFor(name),
				Values: []value.Value{reduce(agg.Func, src, rows)},
			})
		}
	}
	if len(cols) == 0 {
		return value.Empty(), nil
	}
	return value.NewTable(cols...)
}

func sortedColumns(aggs map[string][]Aggregation) []string {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reduce computes one reduction over the given rows of a column. Null
// values are ignored by every function; count counts non-null values only.
func reduce(fn AggFunc, col []value.Value, rows []int) value.Value {
	switch fn {
	case AggCount:
		n := int64(0)
		for _, r := range rows {
			if !col[r].IsNull() {
				n++
			}
		}
		return value.Int(n)
	case AggSum:
		total := 0.0
		for _, r := range rows {
			if f, ok := col[r].AsFloat(); ok {
				total += f
			}
		}
		return value.Float(total)
	case AggAvg:
		total, n := 0.0, 0
		for _, r := range rows {
			if f, ok := col[r].AsFloat(); ok {
				total += f
				n++
			}
		}
		if n == 0 {
			return value.Float(math.NaN())
		}
		return value.Float(total / float64(n))
	case AggMin, AggMax:
		return reduceExtreme(fn, col, rows)
	case AggStd, AggVar:
		return reduceSpread(fn, col, rows)
	case AggMedian:
		return reduceMedian(col, rows)
	default:
		return value.Null()
	}
}

// reduceExtreme finds the minimum or maximum non-null value. It works for
// any orderable kind; candidates incomparable with the running extreme are
// skipped.
func reduceExtreme(fn AggFunc, col []value.Value, rows []int) value.Value {
	best := value.Null()
	for _, r := range rows {
		v := col[r]
		if v.IsNull() {
			continue
		}
		if best.IsNull() {
			best = v
			continue
		}
		cmp, ok := v.Compare(best)
		if !ok {
			continue
		}
		if (fn == AggMin && cmp < 0) || (fn == AggMax && cmp > 0) {
			best = v
		}
	}
	return best
}

// reduceSpread computes sample variance or sample standard deviation
// (divisor n-1). With one or fewer samples the result is NaN.
func reduceSpread(fn AggFunc, col []value.Value, rows []int) value.Value {
	floats := numericValues(col, rows)
	n := float64(len(floats))
	if n <= 1 {
		return value.Float(math.NaN())
	}
	mean := 0.0
	for _, f := range floats {
		mean += f
	}
	mean /= n
	ss := 0.0
	for _, f := range floats {
		d := f - mean
		ss += d * d
	}
	variance := ss / (n - 1)
	if fn == AggStd {
		return value.Float(math.Sqrt(variance))
	}
	return value.Float(variance)
}

// reduceMedian computes the 50th percentile with linear interpolation
// between the two middle order statistics for even counts.
func reduceMedian(col []value.Value, rows []int) value.Value {
	floats := numericValues(col, rows)
	if len(floats) == 0 {
		return value.Float(math.NaN())
	}
	sort.Float64s(floats)
	mid := len(floats) / 2
	if len(floats)%2 == 1 {
		return value.Float(floats[mid])
	}
	return value.Float((floats[mid-1] + floats[mid]) / 2)
}

func numericValues(col []value.Value, rows []int) []float64 {
	floats := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := col[r].AsFloat(); ok {
			floats = append(floats, f)
		}
	}
	return floats
}
