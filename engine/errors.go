package engine

import (
	"errors"
	"fmt"
)

// ErrColumnNotFound reports a column the call cannot proceed without: a
// missing time column or a missing group-by column. Unknown columns in
// predicates and sort keys degrade by omission instead.
var ErrColumnNotFound = errors.New("column not found")

// StageError tags a pipeline failure with the stage that produced it. The
// underlying error is preserved unmodified through Unwrap so callers can
// match on collaborator errors verbatim.
type StageError struct {
	Stage Stage
	Err   error
}

// Error returns the stage-prefixed message.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }
