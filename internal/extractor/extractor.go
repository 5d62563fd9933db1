// Package extractor turns raw spreadsheet bytes into labeled rows.
//
// Source files published by the regulator carry an unpredictable number of
// title/metadata rows before the real header, and the set and order of month
// columns varies between files. The extractor scans the leading rows for the
// one that best matches the expected column shape (group/variable labels plus
// YYYY-MM month columns), discards everything above it, and yields the data
// rows as label→cell mappings.
//
// Extractor is a capability interface with one implementation per source
// format; adding a format means adding a variant, not a subclass chain.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"idaetl/internal/records"
	"idaetl/internal/textutil"
)

// ErrMalformedSource reports that no usable header row was found (or the file
// could not be read as its declared format). It is resource-scoped: the
// orchestrator fails the resource and moves on.
var ErrMalformedSource = errors.New("malformed source: no usable header row")

// Canonical labels for the two leading identity columns. The header cells in
// source files vary ("Grupo Econômico", "GRUPO ECONOMICO", ...); the extractor
// renames the first two columns so downstream stages can key on stable names.
const (
	LabelGroup    = "GRUPO_ECONOMICO"
	LabelVariable = "VARIAVEL"
)

// maxHeaderScan bounds how many leading rows are inspected for the header.
const maxHeaderScan = 20

// minHeaderScore is the minimum number of recognized header cells required to
// accept a row as the header. Below it the resource is malformed.
const minHeaderScore = 2

// Source describes the file being extracted. Filename and Service come from
// the resource catalog, not from file content.
type Source struct {
	Filename string
	Service  string
}

// RawRow is one data row: 1-based line number in the source sheet plus a
// mapping from canonical column label to raw cell text.
type RawRow struct {
	Line  int
	Cells map[string]string
}

// Extractor produces the row sequence of one resource. Implementations must
// not retain r after Extract returns.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, src Source) (*Rows, error)
}

// ForFormat returns the extractor variant for a declared resource format.
func ForFormat(format string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "xlsx", "xls":
		return XLSX{}, nil
	case "csv":
		return CSV{}, nil
	default:
		return nil, fmt.Errorf("unsupported source format %q", format)
	}
}

// Rows is a lazy, finite, non-restartable cursor over the data rows below the
// detected header. It forward-fills the group column: the source files leave
// the provider cell blank on continuation rows (merged cells in the original
// sheet).
type Rows struct {
	labels []string
	grid   [][]string
	base   int // 1-based line number of the first data row

	pos       int
	cur       RawRow
	lastGroup string
}

// Labels returns the canonical column labels in source order.
func (rs *Rows) Labels() []string { return rs.labels }

// Next advances to the next data row. It returns false when the sequence is
// exhausted.
func (rs *Rows) Next() bool {
	if rs.pos >= len(rs.grid) {
		rs.grid = nil // drop the backing buffer once exhausted
		return false
	}
	raw := rs.grid[rs.pos]
	cells := make(map[string]string, len(rs.labels))
	for i, label := range rs.labels {
		if i < len(raw) {
			cells[label] = strings.TrimSpace(raw[i])
		} else {
			cells[label] = ""
		}
	}
	if cells[LabelGroup] == "" {
		cells[LabelGroup] = rs.lastGroup
	} else {
		rs.lastGroup = cells[LabelGroup]
	}
	rs.cur = RawRow{Line: rs.base + rs.pos, Cells: cells}
	rs.pos++
	return true
}

// Row returns the row reached by the last successful Next.
func (rs *Rows) Row() RawRow { return rs.cur }

// newRows builds the cursor for a raw cell grid: detect the header, derive
// canonical labels, and position the cursor on the first data row.
func newRows(grid [][]string, src Source) (*Rows, error) {
	headerIdx, err := detectHeader(grid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Filename, err)
	}
	labels := canonicalLabels(grid[headerIdx])
	return &Rows{
		labels: labels,
		grid:   grid[headerIdx+1:],
		base:   headerIdx + 2, // 1-based line of the row after the header
	}, nil
}

// detectHeader scans the first maxHeaderScan rows and returns the index of
// the row with the highest header score. Rows before it are preamble.
func detectHeader(grid [][]string) (int, error) {
	best, bestScore := -1, 0
	limit := len(grid)
	if limit > maxHeaderScan {
		limit = maxHeaderScan
	}
	for i := 0; i < limit; i++ {
		if s := headerScore(grid[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	if bestScore < minHeaderScore {
		return 0, ErrMalformedSource
	}
	return best, nil
}

// headerScore counts cells that look like expected column names: the group or
// variable identity columns (matched after accent folding) and YYYY-MM month
// columns.
func headerScore(row []string) int {
	score := 0
	for _, cell := range row {
		folded := textutil.Fold(cell)
		switch {
		case strings.Contains(folded, "GRUPO"):
			score++
		case strings.Contains(folded, "VARIAVEL"):
			score++
		default:
			if _, ok := records.ParsePeriod(cell); ok {
				score++
			}
		}
	}
	return score
}

// canonicalLabels maps a detected header row onto stable labels: the first
// two columns become LabelGroup and LabelVariable, the rest keep their
// trimmed source text (month columns stay as YYYY-MM labels).
func canonicalLabels(header []string) []string {
	labels := make([]string, len(header))
	for i, cell := range header {
		labels[i] = textutil.Clean(cell)
	}
	if len(labels) > 0 {
		labels[0] = LabelGroup
	}
	if len(labels) > 1 {
		labels[1] = LabelVariable
	}
	return labels
}
