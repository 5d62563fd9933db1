package extractor

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
)

// CSV extracts rows from delimiter-separated exports of the same indicator
// tables. The reader is deliberately permissive: variable field counts,
// unescaped quotes, and leading spaces all occur in published files.
type CSV struct {
	// Comma is the field delimiter; ';' (the regulator's export default)
	// when zero.
	Comma rune
}

// Extract reads the whole table and returns the row cursor. Header detection
// is shared with the XLSX variant.
func (c CSV) Extract(ctx context.Context, r io.Reader, src Source) (*Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.Comma = ';'
	if c.Comma != 0 {
		cr.Comma = c.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var grid [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line: skip it rather than failing the resource; the
			// header scorer decides whether the file as a whole is usable.
			continue
		}
		if len(grid) == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\uFEFF")
		}
		grid = append(grid, rec)
	}
	return newRows(grid, src)
}
