package source

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeStatement reports a statement rejected by the safety gate before
// any collaborator dispatch.
var ErrUnsafeStatement = errors.New("unsafe statement")

// mutatingKeywords are rejected anywhere in a statement, case-insensitively
// and on word boundaries.
var mutatingKeywords = regexp.MustCompile(`(?i)\b(DROP|DELETE|TRUNCATE|ALTER|CREATE|INSERT|UPDATE)\b`)

// CheckStatement rejects statements that could mutate the target: anything
// not beginning with SELECT, or containing a mutating keyword anywhere.
// It must run before any statement reaches a relational source.
func CheckStatement(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return fmt.Errorf("%w: statement must begin with SELECT", ErrUnsafeStatement)
	}
	if kw := mutatingKeywords.FindString(trimmed); kw != "" {
		return fmt.Errorf("%w: statement contains %s", ErrUnsafeStatement, strings.ToUpper(kw))
	}
	return nil
}

// withLimit appends a LIMIT clause when a positive cap is given and the
// statement has none. Detection is substring-based, matching the loose
// behavior callers depend on.
func withLimit(sql string, limit int64) string {
	if limit <= 0 || strings.Contains(strings.ToUpper(sql), "LIMIT") {
		return sql
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimRight(strings.TrimSpace(sql), ";"), limit)
}
