// Package csvtable reads, reorders and extends the CSV files consumed by
// the grading pipeline. Fields are treated as opaque strings.
package csvtable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var (
	// ErrNotFound covers a missing file or a header name absent from row 0.
	ErrNotFound = errors.New("not found")
	// ErrRange is returned for a column index outside the header.
	ErrRange = errors.New("column index out of range")
	// ErrShortRow is returned when a data row lacks the sort column.
	ErrShortRow = errors.New("row has too few fields")
	// ErrEmpty is returned for a file without a header row.
	ErrEmpty = errors.New("csv has no header row")
)

// FileWriter replaces a file's content. fs.Writer is the production
// implementation.
type FileWriter interface {
	WriteFile(path string, data []byte) error
}

// Table is a CSV file split into its header (row 0) and data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read loads the whole file at path. Rows may have differing field counts.
func Read(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Table{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return Table{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a table from r. Bare quotes inside unquoted fields are kept
// as data. A blank line between data rows is a row without fields and
// fails with ErrShortRow instead of being dropped on rewrite.
func Parse(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read csv: %w", err)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var records [][]string
	blankBefore := false
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to parse csv: %w", err)
		}
		if blankBefore {
			line, _ := cr.FieldPos(0)
			return Table{}, fmt.Errorf("%w: blank line before line %d", ErrShortRow, line)
		}
		records = append(records, record)
		blankBefore = startsWithBlankLine(data[cr.InputOffset():])
	}
	if len(records) == 0 {
		return Table{}, ErrEmpty
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}

func startsWithBlankLine(rest []byte) bool {
	return bytes.HasPrefix(rest, []byte("\n")) || bytes.HasPrefix(rest, []byte("\r\n"))
}

// Bytes renders the table back to CSV.
func (t Table) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HeaderIndex returns the index of the first header field equal to name,
// or -1.
func HeaderIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// SortByColumn stably sorts the data rows by the raw string value of column
// col. The header is never moved. On error the table is unchanged.
func (t Table) SortByColumn(col int) error {
	if col < 0 || col >= len(t.Header) {
		return fmt.Errorf("%w: %d, expected 0 - %d", ErrRange, col, len(t.Header)-1)
	}
	for i, row := range t.Rows {
		if len(row) <= col {
			return fmt.Errorf("%w: data row %d has %d field(s), column %d needed", ErrShortRow, i+1, len(row), col)
		}
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i][col] < t.Rows[j][col]
	})
	return nil
}

// ReorderByColumn sorts the data rows of the CSV file at path by column col
// and rewrites the file through w.
func ReorderByColumn(path string, col int, w FileWriter) error {
	t, err := Read(path)
	if err != nil {
		return err
	}
	return reorder(path, t, col, w)
}

// ReorderByHeader is ReorderByColumn with the column named by its header.
func ReorderByHeader(path, name string, w FileWriter) error {
	t, err := Read(path)
	if err != nil {
		return err
	}
	col := HeaderIndex(t.Header, name)
	if col < 0 {
		return fmt.Errorf("header %q %w in %s, header row is [%s]", name, ErrNotFound, path, strings.Join(t.Header, ","))
	}
	return reorder(path, t, col, w)
}

func reorder(path string, t Table, col int, w FileWriter) error {
	if err := t.SortByColumn(col); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	data, err := t.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return w.WriteFile(path, data)
}
