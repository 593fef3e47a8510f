// Package source connects the analytics pipeline to its data-source
// collaborators: relational databases reached over a pooled connection and
// tabular files loaded as snapshots. The pipeline consumes sources through
// two narrow interfaces; everything else (pooling, credentials, dialect
// quirks) stays on this side of the boundary.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dashlytics/dashlytics/value"
)

// Kind identifies a data-source family.
type Kind string

const (
	KindFile     Kind = "file"
	KindPostgres Kind = "postgresql"
	KindSQLite   Kind = "sqlite"
)

// Dialect identifies the SQL dialect spoken by a relational source. The
// advisor keys its EXPLAIN prefix on it.
type Dialect string

const (
	DialectPostgres Dialect = "postgresql"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ErrUnsupportedSourceType reports an operation requested against a source
// kind that cannot serve it. Fatal.
var ErrUnsupportedSourceType = errors.New("unsupported data source type")

// ExecutionError wraps a collaborator failure. Error returns the
// collaborator's message verbatim so callers can pattern-match on it; the
// failing statement travels alongside. Execution errors are never retried
// here.
type ExecutionError struct {
	Query string
	Err   error
}

// Error returns the underlying message unchanged.
func (e *ExecutionError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// Handle identifies and locates a registered data source.
type Handle struct {
	ID       uuid.UUID
	Name     string
	Kind     Kind
	Host     string
	Port     int
	Database string
	Username string
	// Password arrives already decrypted; credential storage and
	// decryption belong to the registration layer.
	Password string
	// Path locates file-backed sources.
	Path string
}

// DSN assembles the connection string for relational kinds.
func (h Handle) DSN() (string, error) {
	switch h.Kind {
	case KindPostgres:
		port := h.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", h.Username, h.Password, h.Host, port, h.Database), nil
	case KindSQLite:
		return h.Path, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSourceType, h.Kind)
	}
}

// ResultSet is the raw shape returned by relational execution.
type ResultSet struct {
	Columns []string
	Rows    [][]interface{}
}

// ColumnInfo describes one column of a relational table.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
}

// ForeignKey describes one foreign-key constraint.
type ForeignKey struct {
	Name               string
	ConstrainedColumns []string
	ReferredTable      string
	ReferredColumns    []string
}

// TableSchema describes a relational table.
type TableSchema struct {
	Table       string
	Columns     []ColumnInfo
	PrimaryKeys []string
	ForeignKeys []ForeignKey
}

// Source loads table snapshots for the pipeline. A zero limit means no
// row cap.
type Source interface {
	Kind() Kind
	FetchTable(ctx context.Context, table string, limit int64) (*value.Table, error)
	Close() error
}

// Relational extends Source with SQL push-down and schema inspection.
// Implementations own connection pooling and dialect-specific LIMIT
// injection, and gate every statement through CheckStatement before
// dispatch.
type Relational interface {
	Source
	Dialect() Dialect
	RunSQL(ctx context.Context, sql string, limit int64) (*ResultSet, error)
	// RunExplain executes a plan statement whose inner query has already
	// passed the safety gate; the advisor assembles the dialect prefix.
	RunExplain(ctx context.Context, stmt string) (*ResultSet, error)
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) (*TableSchema, error)
}

// Open opens a source for the handle. Callers that want pooling and reuse
// should go through a Cache instead.
func Open(h Handle) (Source, error) {
	switch h.Kind {
	case KindPostgres:
		return OpenPostgres(h)
	case KindSQLite:
		return OpenSQLite(h)
	case KindFile:
		return OpenFile(h.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, h.Kind)
	}
}

// quoteIdent wraps an identifier in double quotes, doubling any embedded
// quote characters.
func quoteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"', '"')
		} else {
			out = append(out, name[i])
		}
	}
	out = append(out, '"')
	return string(out)
}

// selectAll builds the snapshot statement for FetchTable.
func selectAll(table string) string {
	return "SELECT * FROM " + quoteIdent(table)
}
