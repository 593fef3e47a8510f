package source

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dashlytics/dashlytics/value"
)

// Postgres is a PostgreSQL-backed relational source using a pgx connection
// pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a pooled connection for the handle and verifies it
// with a ping.
func OpenPostgres(h Handle) (*Postgres, error) {
	dsn, err := h.DSN()
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, &ExecutionError{Query: "ping", Err: err}
	}
	return &Postgres{pool: pool}, nil
}

// Kind returns KindPostgres.
func (p *Postgres) Kind() Kind { return KindPostgres }

// Dialect returns DialectPostgres.
func (p *Postgres) Dialect() Dialect { return DialectPostgres }

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// FetchTable snapshots a full table into memory.
func (p *Postgres) FetchTable(ctx context.Context, table string, limit int64) (*value.Table, error) {
	rs, err := p.RunSQL(ctx, selectAll(table), limit)
	if err != nil {
		return nil, err
	}
	return value.FromRecords(rs.Columns, rs.Rows)
}

// RunSQL executes one statement after the safety gate, injecting a LIMIT
// when asked and the statement has none. Failures are wrapped with the
// driver message intact and are not retried.
func (p *Postgres) RunSQL(ctx context.Context, sql string, limit int64) (*ResultSet, error) {
	if err := CheckStatement(sql); err != nil {
		return nil, err
	}
	return p.query(ctx, withLimit(sql, limit))
}

// query runs a statement without the safety gate; the EXPLAIN path needs
// this since EXPLAIN does not begin with SELECT.
func (p *Postgres) query(ctx context.Context, sql string) (*ResultSet, error) {
	sourceQueries.WithLabelValues(string(KindPostgres)).Inc()
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		sourceQueryFailures.WithLabelValues(string(KindPostgres)).Inc()
		return nil, &ExecutionError{Query: sql, Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	records := make([][]interface{}, 0)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, &ExecutionError{Query: sql, Err: err}
		}
		records = append(records, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Query: sql, Err: err}
	}
	return &ResultSet{Columns: columns, Rows: records}, nil
}

// RunExplain executes an EXPLAIN-prefixed plan statement assembled by the
// advisor. The caller is responsible for gating the inner statement.
func (p *Postgres) RunExplain(ctx context.Context, stmt string) (*ResultSet, error) {
	return p.query(ctx, stmt)
}

// ListTables returns the public-schema table names.
func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	rs, err := p.query(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if s, ok := row[0].(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// DescribeTable returns columns, primary keys and foreign keys of a table.
func (p *Postgres) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	schema := &TableSchema{Table: table}

	cols, err := p.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, &ExecutionError{Query: "describe columns", Err: err}
	}
	defer cols.Close()
	for cols.Next() {
		var name, typ, nullable, def string
		if err := cols.Scan(&name, &typ, &nullable, &def); err != nil {
			return nil, &ExecutionError{Query: "describe columns", Err: err}
		}
		schema.Columns = append(schema.Columns, ColumnInfo{
			Name:     name,
			Type:     typ,
			Nullable: nullable == "YES",
			Default:  def,
		})
	}
	if err := cols.Err(); err != nil {
		return nil, &ExecutionError{Query: "describe columns", Err: err}
	}

	pks, err := p.pool.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		WHERE tc.table_schema = 'public' AND tc.table_name = $1
		  AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, &ExecutionError{Query: "describe primary keys", Err: err}
	}
	defer pks.Close()
	for pks.Next() {
		var name string
		if err := pks.Scan(&name); err != nil {
			return nil, &ExecutionError{Query: "describe primary keys", Err: err}
		}
		schema.PrimaryKeys = append(schema.PrimaryKeys, name)
	}
	if err := pks.Err(); err != nil {
		return nil, &ExecutionError{Query: "describe primary keys", Err: err}
	}

	fks, err := p.pool.Query(ctx, `
		SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		WHERE tc.table_schema = 'public' AND tc.table_name = $1
		  AND tc.constraint_type = 'FOREIGN KEY'`, table)
	if err != nil {
		return nil, &ExecutionError{Query: "describe foreign keys", Err: err}
	}
	defer fks.Close()
	for fks.Next() {
		var cname, col, rtable, rcol string
		if err := fks.Scan(&cname, &col, &rtable, &rcol); err != nil {
			return nil, &ExecutionError{Query: "describe foreign keys", Err: err}
		}
		schema.ForeignKeys = append(schema.ForeignKeys, ForeignKey{
			Name:               cname,
			ConstrainedColumns: []string{col},
			ReferredTable:      rtable,
			ReferredColumns:    []string{rcol},
		})
	}
	if err := fks.Err(); err != nil {
		return nil, &ExecutionError{Query: "describe foreign keys", Err: err}
	}

	return schema, nil
}
