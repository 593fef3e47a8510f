package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/dashlytics/dashlytics/engine"
)

// TableFormatter renders an aligned text table for terminals.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new text table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format renders the result as a bordered table with a header row
func (t *TableFormatter) Format(res *engine.Result) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(res.Columns)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	for _, row := range res.Rows {
		record := make([]string, len(res.Columns))
		for i := range res.Columns {
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		table.Append(record)
	}
	table.Render()
	return nil
}
