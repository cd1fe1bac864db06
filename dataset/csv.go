package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// ReadCSV loads a headed CSV file. Every row must have as many cells as the
// header.
func ReadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer file.Close()

	f, err := DecodeCSV(bufio.NewReader(file))
	if err != nil {
		var schemaErr *errors.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, errors.NewSchemaError(path, schemaErr.Reason)
		}
		return nil, errors.NewIOError("read", path, err)
	}
	f.Source = path
	return f, nil
}

// DecodeCSV parses a headed CSV stream.
func DecodeCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0 // header width is enforced for every row

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError("", "no header row")
	}
	if err != nil {
		return nil, classifyCSVError(err)
	}
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return nil, errors.NewSchemaError("", "duplicate column "+strconv.Quote(h))
		}
		seen[h] = true
	}

	f := NewFrame(header)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyCSVError(err)
		}
		f.Rows = append(f.Rows, rec)
	}
	return f, nil
}

func classifyCSVError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return errors.NewSchemaError("", parseErr.Error())
	}
	return err
}

// WriteCSV writes f with its header to path, creating parent directories.
// The file is written to a temporary name first and renamed into place.
func WriteCSV(path string, f *Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("create dir", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(f.Header); err != nil {
		tmp.Close()
		return errors.NewIOError("write", path, err)
	}
	if err := w.WriteAll(f.Rows); err != nil {
		tmp.Close()
		return errors.NewIOError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError("close", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewIOError("rename", path, err)
	}
	return nil
}
