package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/dashlytics/dashlytics/value"
)

// File is a source backed by a tabular file: parquet, CSV or JSON lines.
// The whole file loads into memory per fetch; files are assumed to be
// already cleaned by the upload service.
type File struct {
	path string
}

// OpenFile returns a file source for the given path. The file must exist;
// its format is chosen by extension.
func OpenFile(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open file source: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".csv", ".json", ".jsonl":
		return &File{path: path}, nil
	default:
		return nil, fmt.Errorf("%w: file format %q", ErrUnsupportedSourceType, filepath.Ext(path))
	}
}

// Kind returns KindFile.
func (f *File) Kind() Kind { return KindFile }

// Close is a no-op; the file is opened per fetch.
func (f *File) Close() error { return nil }

// FetchTable loads the file as a table. The table argument is ignored;
// a file is its own single table. A positive limit caps the loaded rows.
func (f *File) FetchTable(ctx context.Context, table string, limit int64) (*value.Table, error) {
	var (
		t   *value.Table
		err error
	)
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".parquet":
		t, err = f.readParquet()
	case ".csv":
		t, err = f.readCSV()
	case ".json", ".jsonl":
		t, err = f.readJSONLines()
	default:
		return nil, fmt.Errorf("%w: file format %q", ErrUnsupportedSourceType, filepath.Ext(f.path))
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(t.NumRows()) > limit {
		t = t.Slice(0, int(limit))
	}
	return t, nil
}

func (f *File) readParquet() (*value.Table, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	columns := make([]string, 0)
	for _, field := range pqFile.Schema().Fields() {
		columns = append(columns, field.Name())
	}

	reader := parquet.NewReader(pqFile)
	defer func() { _ = reader.Close() }()

	rows := make([]map[string]interface{}, 0)
	for {
		row := make(map[string]interface{})
		err := reader.Read(&row)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet row: %w", err)
		}
		rows = append(rows, row)
	}
	return tableFromMaps(columns, rows)
}

func (f *File) readCSV() (*value.Table, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return value.Empty(), nil
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make([]value.Column, len(header))
	for i, name := range header {
		cols[i] = value.Column{Name: name}
	}
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		for i := range cols {
			if i < len(record) {
				cols[i].Values = append(cols[i].Values, sniffCSV(record[i]))
			} else {
				cols[i].Values = append(cols[i].Values, value.Null())
			}
		}
	}
	return value.NewTable(cols...)
}

// sniffCSV coerces a CSV cell to the narrowest kind that fits: empty cells
// become null, then int, float, bool, finally text.
func sniffCSV(cell string) value.Value {
	if cell == "" {
		return value.Null()
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return value.Float(f)
	}
	switch cell {
	case "true", "True", "TRUE":
		return value.Bool(true)
	case "false", "False", "FALSE":
		return value.Bool(false)
	}
	return value.Text(cell)
}

func (f *File) readJSONLines() (*value.Table, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	rows := make([]map[string]interface{}, 0)
	columns := make([]string, 0)
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		row := make(map[string]interface{})
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}
		for col := range row {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return tableFromMaps(columns, rows)
}

// tableFromMaps builds a table from row maps and an explicit column order.
// Missing cells become null.
func tableFromMaps(columns []string, rows []map[string]interface{}) (*value.Table, error) {
	cols := make([]value.Column, len(columns))
	for i, name := range columns {
		vals := make([]value.Value, len(rows))
		for j, row := range rows {
			if cell, ok := row[name]; ok {
				vals[j] = value.FromAny(cell)
			} else {
				vals[j] = value.Null()
			}
		}
		cols[i] = value.Column{Name: name, Values: vals}
	}
	return value.NewTable(cols...)
}
