// Package sqlbuilder assembles SELECT statements from the same declarative
// filter, aggregation and sort descriptors the in-memory pipeline runs,
// for push-down execution against relational sources.
//
// Identifiers are double-quoted verbatim; callers must validate
// caller-controlled names upstream or hand the builder an identifier
// allow-list. Literals are escaped textually; there is no parameter
// binding, so the safety of a built statement rests entirely on the
// formatting rules here and the allow-list.
package sqlbuilder

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dashlytics/dashlytics/engine"
	"github.com/dashlytics/dashlytics/logger"
	"github.com/dashlytics/dashlytics/value"
)

// Builder accumulates clauses for one SELECT statement. Methods chain and
// silently drop malformed clauses, matching the filter evaluator's
// permissive behavior.
type Builder struct {
	table    string
	selects  []string
	wheres   []string
	groupBys []string
	havings  []string
	orderBys []string
	limit    *int64
	offset   *int64
	aggs     []aggregation
	joins    []join
	allowed  map[string]bool
	log      *slog.Logger
}

type aggregation struct {
	column string
	fn     engine.AggFunc
	alias  string
}

type join struct {
	table    string
	on       string
	joinType string
}

// New starts a builder for the given table.
func New(table string) *Builder {
	return &Builder{table: table, log: logger.With("sqlbuilder")}
}

// AllowColumns restricts identifiers to the given names. Once set, clauses
// naming any other column are dropped with a warning before they can reach
// the statement.
func (b *Builder) AllowColumns(names ...string) *Builder {
	if b.allowed == nil {
		b.allowed = make(map[string]bool, len(names))
	}
	for _, n := range names {
		b.allowed[n] = true
	}
	return b
}

func (b *Builder) columnAllowed(name string) bool {
	if b.allowed == nil {
		return true
	}
	if !b.allowed[name] {
		b.log.Warn("dropping clause naming disallowed column", "column", name)
		return false
	}
	return true
}

// Select adds fields to the SELECT clause.
func (b *Builder) Select(fields ...string) *Builder {
	for _, f := range fields {
		if b.columnAllowed(f) {
			b.selects = append(b.selects, quoteIdent(f))
		}
	}
	return b
}

// Where adds one condition, ANDed with the others. Conditions with
// malformed operand arity are omitted.
func (b *Builder) Where(p engine.Predicate) *Builder {
	if cond, ok := b.buildCondition(p); ok {
		b.wheres = append(b.wheres, cond)
	}
	return b
}

// WhereRaw adds a raw condition verbatim.
func (b *Builder) WhereRaw(cond string) *Builder {
	b.wheres = append(b.wheres, cond)
	return b
}

// GroupBy adds fields to the GROUP BY clause.
func (b *Builder) GroupBy(fields ...string) *Builder {
	for _, f := range fields {
		if b.columnAllowed(f) {
			b.groupBys = append(b.groupBys, f)
		}
	}
	return b
}

// Having adds a post-aggregation condition.
func (b *Builder) Having(p engine.Predicate) *Builder {
	if cond, ok := b.buildCondition(p); ok {
		b.havings = append(b.havings, cond)
	}
	return b
}

// OrderBy adds a sort field.
func (b *Builder) OrderBy(field string, ascending bool) *Builder {
	if !b.columnAllowed(field) {
		return b
	}
	dir := "ASC"
	if !ascending {
		dir = "DESC"
	}
	b.orderBys = append(b.orderBys, quoteIdent(field)+" "+dir)
	return b
}

// Limit sets the LIMIT clause.
func (b *Builder) Limit(n int64) *Builder {
	b.limit = &n
	return b
}

// Offset sets the OFFSET clause.
func (b *Builder) Offset(n int64) *Builder {
	b.offset = &n
	return b
}

// Aggregate adds an aggregation projection. An empty alias defaults to
// "{function}_{column}".
func (b *Builder) Aggregate(column string, fn engine.AggFunc, alias string) *Builder {
	if !b.columnAllowed(column) {
		return b
	}
	if alias == "" {
		alias = string(fn) + "_" + column
	}
	b.aggs = append(b.aggs, aggregation{column: column, fn: fn, alias: alias})
	return b
}

// Join adds a JOIN clause. An empty joinType defaults to INNER.
func (b *Builder) Join(table, on, joinType string) *Builder {
	if joinType == "" {
		joinType = "INNER"
	}
	b.joins = append(b.joins, join{table: table, on: on, joinType: joinType})
	return b
}

// Build assembles the statement. Clause order is fixed: SELECT, FROM,
// JOINs, WHERE, GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET. Clauses with no
// content are omitted entirely.
func (b *Builder) Build() string {
	parts := make([]string, 0, 8)

	selectParts := make([]string, 0, len(b.selects)+len(b.aggs))
	selectParts = append(selectParts, b.selects...)
	for _, agg := range b.aggs {
		selectParts = append(selectParts, fmt.Sprintf("%s(%s) AS %s",
			strings.ToUpper(string(agg.fn)), quoteIdent(agg.column), quoteIdent(agg.alias)))
	}
	if len(selectParts) == 0 {
		selectParts = append(selectParts, "*")
	}
	parts = append(parts, "SELECT "+strings.Join(selectParts, ", "))
	parts = append(parts, "FROM "+quoteIdent(b.table))

	for _, j := range b.joins {
		parts = append(parts, fmt.Sprintf("%s JOIN %s ON %s", j.joinType, quoteIdent(j.table), j.on))
	}
	if len(b.wheres) > 0 {
		parts = append(parts, "WHERE "+strings.Join(b.wheres, " AND "))
	}
	if len(b.groupBys) > 0 {
		quoted := make([]string, len(b.groupBys))
		for i, f := range b.groupBys {
			quoted[i] = quoteIdent(f)
		}
		parts = append(parts, "GROUP BY "+strings.Join(quoted, ", "))
	}
	if len(b.havings) > 0 {
		parts = append(parts, "HAVING "+strings.Join(b.havings, " AND "))
	}
	if len(b.orderBys) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(b.orderBys, ", "))
	}
	if b.limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *b.limit))
	}
	if b.offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *b.offset))
	}

	return strings.Join(parts, " ")
}

// buildCondition renders one predicate as SQL. The operator mapping mirrors
// the filter evaluator's set one-to-one; malformed arity drops the clause.
func (b *Builder) buildCondition(p engine.Predicate) (string, bool) {
	if !b.columnAllowed(p.Column) {
		return "", false
	}
	if p.Validate() == engine.ClauseSkipped {
		return "", false
	}
	col := quoteIdent(p.Column)
	switch p.Operator {
	case engine.OpEq:
		return col + " = " + formatValue(p.Operand), true
	case engine.OpNe:
		return col + " != " + formatValue(p.Operand), true
	case engine.OpGt:
		return col + " > " + formatValue(p.Operand), true
	case engine.OpGte:
		return col + " >= " + formatValue(p.Operand), true
	case engine.OpLt:
		return col + " < " + formatValue(p.Operand), true
	case engine.OpLte:
		return col + " <= " + formatValue(p.Operand), true
	case engine.OpLike:
		return col + " LIKE " + formatValue(p.Operand), true
	case engine.OpIn:
		return col + " IN (" + formatList(p.Operands) + ")", true
	case engine.OpNotIn:
		return col + " NOT IN (" + formatList(p.Operands) + ")", true
	case engine.OpIsNull:
		return col + " IS NULL", true
	case engine.OpIsNotNull:
		return col + " IS NOT NULL", true
	case engine.OpBetween:
		return col + " BETWEEN " + formatValue(p.Operands[0]) + " AND " + formatValue(p.Operands[1]), true
	default:
		return "", false
	}
}

func formatList(vals []value.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, ", ")
}

// formatValue renders a literal: NULL unquoted, text single-quoted with
// internal quotes doubled, numerics raw, booleans as TRUE/FALSE,
// timestamps as ISO-8601 string literals.
func formatValue(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "NULL"
	case value.KindBool:
		if b, _ := v.AsBool(); b {
			return "TRUE"
		}
		return "FALSE"
	case value.KindInt, value.KindFloat:
		return v.String()
	case value.KindTime:
		t, _ := v.AsTime()
		return "'" + t.Format(time.RFC3339) + "'"
	default:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	}
}

// quoteIdent wraps an identifier in double quotes verbatim.
func quoteIdent(name string) string {
	return strconv.Quote(name)
}

// FromDescriptor binds a query descriptor to a builder for the given
// table: predicates become WHERE conditions, group-by columns are both
// grouped and selected, aggregations become projections, and sort keys
// become ORDER BY fields.
func FromDescriptor(table string, q engine.QueryDescriptor) *Builder {
	b := New(table)
	for _, p := range q.Predicates {
		b.Where(p)
	}
	if len(q.GroupBy) > 0 {
		b.Select(q.GroupBy...)
		b.GroupBy(q.GroupBy...)
	}
	for _, column := range sortedAggColumns(q.Aggregations) {
		for _, agg := range q.Aggregations[column] {
			b.Aggregate(column, agg.Func, agg.Alias)
		}
	}
	for _, k := range q.SortBy {
		b.OrderBy(k.Column, k.Ascending)
	}
	if q.Limit != nil {
		b.Limit(*q.Limit)
	}
	if q.Offset != nil {
		b.Offset(*q.Offset)
	}
	return b
}

func sortedAggColumns(aggs map[string][]engine.Aggregation) []string {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
