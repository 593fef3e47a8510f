package engine

import (
	"sort"

	"github.com/dashlytics/dashlytics/value"
)

// SortKey is one column of a multi-key sort.
type SortKey struct {
	Column    string
	Ascending bool
}

// Sort stably sorts the table by the given keys. Keys naming unknown
// columns are filtered out first; if none remain the table passes through
// unchanged. Nulls order first ascending, last descending. Values of
// incomparable kinds are treated as equal, preserving input order.
func Sort(t *value.Table, keys []SortKey) *value.Table {
	valid := make([]SortKey, 0, len(keys))
	for _, k := range keys {
		if t.HasColumn(k.Column) {
			valid = append(valid, k)
		}
	}
	if len(valid) == 0 {
		return t
	}

	cols := make([][]value.Value, len(valid))
	for i, k := range valid {
		cols[i], _ = t.Column(k.Column)
	}

	idx := make([]int, t.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for i, k := range valid {
			va, vb := cols[i][idx[a]], cols[i][idx[b]]
			if va.IsNull() && vb.IsNull() {
				continue
			}
			if va.IsNull() {
				return k.Ascending
			}
			if vb.IsNull() {
				return !k.Ascending
			}
			cmp, ok := va.Compare(vb)
			if !ok || cmp == 0 {
				continue
			}
			if k.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return t.Select(idx)
}

// Paginate applies offset then limit. An offset beyond the row count
// yields an empty table; a nil limit means unbounded; a zero limit yields
// an empty table.
func Paginate(t *value.Table, offset, limit *int64) *value.Table {
	start := int64(0)
	if offset != nil && *offset > 0 {
		start = *offset
	}
	end := int64(t.NumRows())
	if limit != nil {
		if *limit == 0 {
			end = start
		} else if *limit > 0 && start+*limit < end {
			end = start + *limit
		}
	}
	if start == 0 && end == int64(t.NumRows()) {
		return t
	}
	return t.Slice(int(start), int(end))
}
