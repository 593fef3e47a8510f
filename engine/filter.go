// Package engine implements the tabular analytics pipeline: predicate
// filtering, grouped aggregation, calendar time bucketing, stable sorting
// and pagination over value.Table snapshots, composed by a pipeline
// orchestrator.
//
// All stages are pure transforms: they take a table and return a new one,
// never mutating their input. Recoverable clause problems (unknown columns,
// malformed operand arity) degrade by skipping the clause; only conditions
// that would make a result ambiguous fail the call.
package engine

import (
	"strings"

	"github.com/dashlytics/dashlytics/value"
)

// Operator is a filter comparison operator.
type Operator string

const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpLike      Operator = "like"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
	OpBetween   Operator = "between"
)

// Predicate is one filter clause. Scalar operators read Operand; in/not_in
// read Operands as a membership list; between reads Operands as exactly two
// bounds.
type Predicate struct {
	Column   string
	Operator Operator
	Operand  value.Value
	Operands []value.Value
}

// ClauseOutcome reports whether a clause is well-formed enough to apply.
type ClauseOutcome int

const (
	// ClauseApplied marks a clause that participates in evaluation.
	ClauseApplied ClauseOutcome = iota
	// ClauseSkipped marks a clause dropped for malformed operand arity or
	// an unrecognized operator. Skipping is silent and non-fatal.
	ClauseSkipped
)

// Validate checks operand arity against the operator. Scalar operators
// require a non-null operand (null comparisons go through is_null and
// is_not_null), in/not_in require a list, between requires exactly two
// bounds; anything else is skipped rather than rejected.
func (p Predicate) Validate() ClauseOutcome {
	switch p.Operator {
	case OpIsNull, OpIsNotNull:
		return ClauseApplied
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpLike:
		if p.Operand.IsNull() {
			return ClauseSkipped
		}
		return ClauseApplied
	case OpIn, OpNotIn:
		if p.Operands == nil {
			return ClauseSkipped
		}
		return ClauseApplied
	case OpBetween:
		if len(p.Operands) != 2 {
			return ClauseSkipped
		}
		return ClauseApplied
	default:
		return ClauseSkipped
	}
}

// Filter applies predicates to a table, ANDing them, and returns the
// filtered table. Predicates naming unknown columns or failing validation
// are skipped. An empty predicate list returns the input unchanged.
func Filter(t *value.Table, preds []Predicate) *value.Table {
	applied := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if !t.HasColumn(p.Column) {
			continue
		}
		if p.Validate() == ClauseSkipped {
			continue
		}
		applied = append(applied, p)
	}
	if len(applied) == 0 {
		return t
	}

	keep := make([]int, 0, t.NumRows())
	for r := 0; r < t.NumRows(); r++ {
		match := true
		for _, p := range applied {
			cell, _ := t.Cell(p.Column, r)
			if !matchPredicate(cell, p) {
				match = false
				break
			}
		}
		if match {
			keep = append(keep, r)
		}
	}
	return t.Select(keep)
}

// matchPredicate evaluates one validated predicate against a cell. Null
// cells satisfy only the null checks.
func matchPredicate(cell value.Value, p Predicate) bool {
	switch p.Operator {
	case OpIsNull:
		return cell.IsNull()
	case OpIsNotNull:
		return !cell.IsNull()
	}
	if cell.IsNull() {
		return false
	}

	switch p.Operator {
	case OpEq:
		return cell.Equal(p.Operand)
	case OpNe:
		return !cell.Equal(p.Operand)
	case OpGt:
		cmp, ok := cell.Compare(p.Operand)
		return ok && cmp > 0
	case OpGte:
		cmp, ok := cell.Compare(p.Operand)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := cell.Compare(p.Operand)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := cell.Compare(p.Operand)
		return ok && cmp <= 0
	case OpLike:
		// Case-sensitive substring containment on the textual rendering.
		return strings.Contains(cell.String(), p.Operand.String())
	case OpIn:
		return inList(cell, p.Operands)
	case OpNotIn:
		return !inList(cell, p.Operands)
	case OpBetween:
		lo, lok := cell.Compare(p.Operands[0])
		hi, hok := cell.Compare(p.Operands[1])
		return lok && hok && lo >= 0 && hi <= 0
	default:
		return false
	}
}

func inList(cell value.Value, list []value.Value) bool {
	for _, v := range list {
		if cell.Equal(v) {
			return true
		}
	}
	return false
}
