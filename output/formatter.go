// Package output renders pipeline results for terminals and files.
//
// Supported formats:
//   - JSON Lines: one JSON object per row
//   - CSV: comma-separated values with header row
//   - Table: aligned text table for terminals
//
// Example usage:
//
//	formatter := output.NewJSONFormatter(os.Stdout)
//	if err := formatter.Format(result); err != nil {
//	    log.Fatal(err)
//	}
package output

import (
	"io"

	"github.com/dashlytics/dashlytics/engine"
)

// Formatter defines the interface for result formatters.
//
// Implementers must provide Format to render a result in the target format
// and SetOutput to change the output destination. Column order follows the
// result, never the formatter.
type Formatter interface {
	// Format renders the result in the formatter's specific format
	Format(res *engine.Result) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// New returns the formatter for a format name: "json", "csv" or "table".
// Unknown names fall back to the table formatter.
func New(format string, w io.Writer) Formatter {
	switch format {
	case "json":
		return NewJSONFormatter(w)
	case "csv":
		return NewCSVFormatter(w)
	default:
		return NewTableFormatter(w)
	}
}
