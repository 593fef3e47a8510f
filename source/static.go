package source

import (
	"context"

	"github.com/dashlytics/dashlytics/value"
)

// Static serves a fixed in-memory table. It backs upload snapshots that
// were already parsed elsewhere, and doubles as the test source.
type Static struct {
	table *value.Table
}

// NewStatic wraps a table as a source.
func NewStatic(t *value.Table) *Static {
	return &Static{table: t}
}

// Kind returns KindFile; a static snapshot behaves like a loaded file.
func (s *Static) Kind() Kind { return KindFile }

// Close is a no-op.
func (s *Static) Close() error { return nil }

// FetchTable returns the snapshot, capped to limit rows when positive.
// The table argument is ignored.
func (s *Static) FetchTable(ctx context.Context, table string, limit int64) (*value.Table, error) {
	t := s.table
	if limit > 0 && int64(t.NumRows()) > limit {
		t = t.Slice(0, int(limit))
	}
	return t, nil
}
