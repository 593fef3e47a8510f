package source

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/dashlytics/dashlytics/value"
)

// SQLite is a file-backed relational source using the modernc pure-Go
// driver.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database file named by the handle's path.
func OpenSQLite(h Handle) (*SQLite, error) {
	dsn, err := h.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &ExecutionError{Query: "ping", Err: err}
	}
	return &SQLite{db: db}, nil
}

// Kind returns KindSQLite.
func (s *SQLite) Kind() Kind { return KindSQLite }

// Dialect returns DialectSQLite.
func (s *SQLite) Dialect() Dialect { return DialectSQLite }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// FetchTable snapshots a full table into memory.
func (s *SQLite) FetchTable(ctx context.Context, table string, limit int64) (*value.Table, error) {
	rs, err := s.RunSQL(ctx, selectAll(table), limit)
	if err != nil {
		return nil, err
	}
	return value.FromRecords(rs.Columns, rs.Rows)
}

// RunSQL executes one statement after the safety gate, injecting a LIMIT
// when asked and the statement has none.
func (s *SQLite) RunSQL(ctx context.Context, sqlText string, limit int64) (*ResultSet, error) {
	if err := CheckStatement(sqlText); err != nil {
		return nil, err
	}
	return s.query(ctx, withLimit(sqlText, limit))
}

// RunExplain executes an EXPLAIN-prefixed plan statement assembled by the
// advisor.
func (s *SQLite) RunExplain(ctx context.Context, stmt string) (*ResultSet, error) {
	return s.query(ctx, stmt)
}

func (s *SQLite) query(ctx context.Context, sqlText string) (*ResultSet, error) {
	sourceQueries.WithLabelValues(string(KindSQLite)).Inc()
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		sourceQueryFailures.WithLabelValues(string(KindSQLite)).Inc()
		return nil, &ExecutionError{Query: sqlText, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Query: sqlText, Err: err}
	}

	records := make([][]interface{}, 0)
	for rows.Next() {
		vals := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{Query: sqlText, Err: err}
		}
		records = append(records, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Query: sqlText, Err: err}
	}
	return &ResultSet{Columns: columns, Rows: records}, nil
}

// ListTables returns the user table names from sqlite_master.
func (s *SQLite) ListTables(ctx context.Context) ([]string, error) {
	rs, err := s.query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		names = append(names, value.FromAny(row[0]).String())
	}
	return names, nil
}

// DescribeTable returns columns, primary keys and foreign keys using the
// table_info and foreign_key_list pragmas.
func (s *SQLite) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	schema := &TableSchema{Table: table}

	info, err := s.query(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	// table_info columns: cid, name, type, notnull, dflt_value, pk
	for _, row := range info.Rows {
		notnull, _ := value.FromAny(row[3]).AsFloat()
		pk, _ := value.FromAny(row[5]).AsFloat()
		name := value.FromAny(row[1]).String()
		schema.Columns = append(schema.Columns, ColumnInfo{
			Name:     name,
			Type:     value.FromAny(row[2]).String(),
			Nullable: notnull == 0,
			Default:  value.FromAny(row[4]).String(),
		})
		if pk > 0 {
			schema.PrimaryKeys = append(schema.PrimaryKeys, name)
		}
	}

	fks, err := s.query(ctx, "PRAGMA foreign_key_list("+quoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	// foreign_key_list columns: id, seq, table, from, to, ...
	for _, row := range fks.Rows {
		schema.ForeignKeys = append(schema.ForeignKeys, ForeignKey{
			ConstrainedColumns: []string{value.FromAny(row[3]).String()},
			ReferredTable:      value.FromAny(row[2]).String(),
			ReferredColumns:    []string{value.FromAny(row[4]).String()},
		})
	}

	return schema, nil
}
