// Package dataset holds the tabular frame shared by every pipeline stage,
// together with CSV I/O and the deterministic train/test split.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// Frame is a header plus string cells, one slice per row. Cells keep their
// textual form so categorical and numeric columns can be told apart later.
// An empty cell is a missing value.
type Frame struct {
	Header []string
	Rows   [][]string
	// Source names where the rows came from (a file path or a request);
	// schema errors report it.
	Source string
}

// NewFrame returns an empty frame with a copy of header.
func NewFrame(header []string) *Frame {
	return &Frame{Header: append([]string(nil), header...)}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	for i, h := range f.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, errors.NewSchemaError(f.Source, "missing column "+strconv.Quote(name))
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Subset returns a frame containing the rows at idx, in that order. Rows are
// shared with f.
func (f *Frame) Subset(idx []int) *Frame {
	out := &Frame{Header: f.Header, Rows: make([][]string, len(idx)), Source: f.Source}
	for i, r := range idx {
		out.Rows[i] = f.Rows[r]
	}
	return out
}

// Drop returns a frame without the named column.
func (f *Frame) Drop(name string) (*Frame, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, errors.NewSchemaError(f.Source, "missing column "+strconv.Quote(name))
	}
	out := &Frame{Header: make([]string, 0, len(f.Header)-1), Rows: make([][]string, len(f.Rows)), Source: f.Source}
	out.Header = append(out.Header, f.Header[:idx]...)
	out.Header = append(out.Header, f.Header[idx+1:]...)
	for i, row := range f.Rows {
		r := make([]string, 0, len(row)-1)
		r = append(r, row[:idx]...)
		r = append(r, row[idx+1:]...)
		out.Rows[i] = r
	}
	return out, nil
}

// Float parses the named column as float64. Missing cells are an error.
func (f *Frame) Float(name string) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, s := range col {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, errors.NewSchemaError(f.Source, "column "+strconv.Quote(name)+" row "+strconv.Itoa(i)+": not numeric: "+strconv.Quote(s))
		}
		out[i] = v
	}
	return out, nil
}

// IsMissing reports whether a cell counts as a missing value.
func IsMissing(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "nan", "null":
		return true
	}
	return false
}

// FromRecords builds a frame over columns from JSON-style records. Keys not
// in columns are ignored; absent keys become missing cells.
func FromRecords(columns []string, records []map[string]interface{}) *Frame {
	f := NewFrame(columns)
	f.Rows = make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		for j, c := range columns {
			if v, ok := rec[c]; ok && v != nil {
				row[j] = formatCell(v)
			}
		}
		f.Rows[i] = row
	}
	return f
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
