package output

import (
	"encoding/json"
	"io"

	"github.com/dashlytics/dashlytics/engine"
)

// JSONFormatter outputs rows as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes the result as JSON Lines (one JSON object per row)
func (j *JSONFormatter) Format(res *engine.Result) error {
	encoder := json.NewEncoder(j.writer)
	for _, row := range res.Rows {
		obj := make(map[string]interface{}, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(row) {
				obj[col] = row[i]
			}
		}
		if err := encoder.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}
