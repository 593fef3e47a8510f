package value

import "fmt"

// Column is a named, homogeneous sequence of values.
type Column struct {
	Name   string
	Values []Value
}

// Table is an immutable snapshot of uniquely-named columns sharing one row
// count. Pipeline stages never mutate a Table in place; they build new ones.
type Table struct {
	cols  []Column
	index map[string]int
}

// NewTable builds a table from columns, validating that names are unique
// and all columns have the same length.
func NewTable(cols ...Column) (*Table, error) {
	index := make(map[string]int, len(cols))
	rows := -1
	for i, col := range cols {
		if _, dup := index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		index[col.Name] = i
		if rows == -1 {
			rows = len(col.Values)
		} else if len(col.Values) != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", col.Name, len(col.Values), rows)
		}
	}
	return &Table{cols: cols, index: index}, nil
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return &Table{index: map[string]int{}}
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0].Values)
}

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, col := range t.cols {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]Value, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i].Values, true
}

// Cell returns the value at the given column name and row.
func (t *Table) Cell(name string, row int) (Value, bool) {
	i, ok := t.index[name]
	if !ok {
		return Null(), false
	}
	return t.cols[i].Values[row], true
}

// Select returns a new table containing the given rows, in order. Row
// indices may repeat; they must be in range.
func (t *Table) Select(rows []int) *Table {
	cols := make([]Column, len(t.cols))
	for i, col := range t.cols {
		vals := make([]Value, len(rows))
		for j, r := range rows {
			vals[j] = col.Values[r]
		}
		cols[i] = Column{Name: col.Name, Values: vals}
	}
	nt, _ := NewTable(cols...)
	return nt
}

// Slice returns a new table holding rows [start, end). Bounds are clamped
// to the table's row count.
func (t *Table) Slice(start, end int) *Table {
	n := t.NumRows()
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	cols := make([]Column, len(t.cols))
	for i, col := range t.cols {
		vals := make([]Value, end-start)
		copy(vals, col.Values[start:end])
		cols[i] = Column{Name: col.Name, Values: vals}
	}
	nt, _ := NewTable(cols...)
	return nt
}

// FromRecords builds a table from column names and row-major records, as
// returned by relational sources. Short records are padded with nulls.
func FromRecords(columns []string, records [][]interface{}) (*Table, error) {
	cols := make([]Column, len(columns))
	for i, name := range columns {
		vals := make([]Value, len(records))
		for j, rec := range records {
			if i < len(rec) {
				vals[j] = FromAny(rec[i])
			} else {
				vals[j] = Null()
			}
		}
		cols[i] = Column{Name: name, Values: vals}
	}
	return NewTable(cols...)
}

// Records converts the table to column names plus row-major records of
// plain Go scalars, the shape of the engine's response payload.
func (t *Table) Records() ([]string, [][]interface{}) {
	names := t.ColumnNames()
	rows := make([][]interface{}, t.NumRows())
	for r := range rows {
		rec := make([]interface{}, len(t.cols))
		for c, col := range t.cols {
			rec[c] = col.Values[r].Any()
		}
		rows[r] = rec
	}
	return names, rows
}
