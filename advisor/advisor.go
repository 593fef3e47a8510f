// Package advisor rewrites raw SELECT statements for cheaper execution and
// retrieves database execution plans. It treats statements textually
// (there is no SQL parser here), so its heuristics are deliberately
// conservative: when in doubt, the statement passes through unchanged.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dashlytics/dashlytics/source"
)

// defaultRowCap is injected into unbounded plain SELECTs.
const defaultRowCap = 1000

// Optimize normalizes whitespace and caps plain unbounded SELECTs. A
// statement qualifies for the cap when it begins with SELECT, has no GROUP
// BY or UNION, and carries no LIMIT of its own. When the statement already
// pages with OFFSET, the cap is spliced in front of it so the clause order
// stays valid.
func Optimize(sql string) string {
	stmt := strings.Join(strings.Fields(sql), " ")
	upper := strings.ToUpper(stmt)

	if !strings.HasPrefix(upper, "SELECT") {
		return stmt
	}
	if strings.Contains(upper, "GROUP BY") || strings.Contains(upper, "UNION") {
		return stmt
	}
	if strings.Contains(upper, "LIMIT") {
		return stmt
	}

	if idx := strings.Index(upper, "OFFSET"); idx >= 0 {
		return fmt.Sprintf("%s LIMIT %d %s", strings.TrimSpace(stmt[:idx]), defaultRowCap, stmt[idx:])
	}
	return fmt.Sprintf("%s LIMIT %d", stmt, defaultRowCap)
}

// Explain runs the statement through the source's plan facility and returns
// the plan rows as text, one per plan line. PostgreSQL sources get
// EXPLAIN ANALYZE, which executes the statement; everything else gets a
// plain EXPLAIN. The statement passes the safety gate before any prefix is
// attached, so mutating statements are never executed even under ANALYZE.
func Explain(ctx context.Context, src source.Relational, sql string) ([]string, error) {
	if err := source.CheckStatement(sql); err != nil {
		return nil, err
	}

	prefix := "EXPLAIN"
	if src.Dialect() == source.DialectPostgres {
		prefix = "EXPLAIN ANALYZE"
	}

	rs, err := src.RunExplain(ctx, prefix+" "+sql)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		parts := make([]string, 0, len(row))
		for _, cell := range row {
			parts = append(parts, fmt.Sprintf("%v", cell))
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return lines, nil
}
