package csvtable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sokinpui/gradeprep/internal/csvcodec"
	"github.com/sokinpui/gradeprep/internal/fs"
)

// DefaultGroupWidth is the number of addendum lines per rubric row.
const DefaultGroupWidth = 6

// AppendGrouped turns the lines of a plain-text addendum into CSV rows of
// width fields each and appends them to the rubric CSV at dst. Every line
// is encoded with codec first, so commas inside a line survive as the
// placeholder. The last row may be shorter. It returns the number of rows
// appended.
func AppendGrouped(src, dst string, width int, codec csvcodec.Codec, w FileWriter) (int, error) {
	if width < 1 {
		return 0, fmt.Errorf("group width must be positive, got %d", width)
	}
	lines, err := fs.ReadLines(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", src, ErrNotFound)
		}
		return 0, err
	}

	var rows [][]string
	var row []string
	for _, line := range lines {
		row = append(row, codec.Encode(strings.TrimRight(line, "\r\n")))
		if len(row) == width {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	existing, err := os.ReadFile(dst)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		buf.WriteByte('\n')
	}
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(rows); err != nil {
		return 0, fmt.Errorf("failed to encode addendum rows: %w", err)
	}
	if err := w.WriteFile(dst, buf.Bytes()); err != nil {
		return 0, err
	}
	return len(rows), nil
}
