// Package records defines the canonical, normalized observation produced by
// the extract/normalize stages and consumed by the dimension resolver and the
// batch loader. One Record represents one measured value for one provider,
// service, variable, and calendar month.
//
// The content digest defined here is the pipeline's re-ingestion guard: it is
// computed from the originating file, the source row number, and the raw cell
// value, so loading the same file twice reproduces the same digests and the
// store's unique hash column turns the second run into a no-op.
package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
)

// fieldSep separates digest inputs. Chosen to be absent from file names and
// numeric cell values.
const fieldSep = '\x1f'

// Period is a month-granular time key. Derived attributes (quarter, semester,
// month name) are computed once at dimension-creation time, never stored here.
type Period struct {
	Year  int
	Month time.Month
}

// String renders the period as YYYY-MM, the form used in source column labels.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Date renders the period as the first day of the month (YYYY-MM-01), which is
// the natural key of the time dimension.
func (p Period) Date() string {
	return fmt.Sprintf("%04d-%02d-01", p.Year, int(p.Month))
}

// Quarter returns the 1-based calendar quarter.
func (p Period) Quarter() int { return (int(p.Month)-1)/3 + 1 }

// Semester returns the 1-based calendar half-year.
func (p Period) Semester() int { return (int(p.Month)-1)/6 + 1 }

// monthNames holds Portuguese month names as published in the source files.
var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril",
	"Maio", "Junho", "Julho", "Agosto",
	"Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthName returns the Portuguese name of the period's month.
func (p Period) MonthName() string { return monthNames[int(p.Month)-1] }

// ParsePeriod parses a YYYY-MM label (surrounding space and a trailing
// day/time component are tolerated, as some sheets render month columns as
// full timestamps). ok is false when the label is not a month column.
func ParsePeriod(label string) (Period, bool) {
	s := strings.TrimSpace(label)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	// Accept YYYY-MM and YYYY-MM-DD.
	if len(s) > 7 {
		if len(s) != 10 || s[7] != '-' {
			return Period{}, false
		}
		s = s[:7]
	}
	if len(s) != 7 || s[4] != '-' {
		return Period{}, false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return Period{}, false
	}
	month, err := strconv.Atoi(s[5:7])
	if err != nil {
		return Period{}, false
	}
	if year < 2000 || year > 2100 || month < 1 || month > 12 {
		return Period{}, false
	}
	return Period{Year: year, Month: time.Month(month)}, true
}

// Record is one normalized observation headed for the fact table.
type Record struct {
	Period       Period
	GroupCode    string
	GroupName    string // display form of the provider name, for the dimension row
	ServiceCode  string
	VariableCode string

	// Value is the parsed numeric value. RawValue preserves the cell text as
	// read from the source; the content digest is computed over RawValue so
	// that digests survive any change in numeric formatting rules.
	Value    decimal.Decimal
	RawValue string

	SourceFile string
	SourceRow  int
}

// Digest returns the stable content hash of the record: xxh3-128 over the
// source file name, source row number, month column, and raw value, in that
// order. One source row unpivots into one record per month column, so the
// month is part of the cell's identity. The digest is deterministic across
// runs and process restarts.
func (r Record) Digest() string {
	var b strings.Builder
	b.Grow(len(r.SourceFile) + len(r.RawValue) + 24)
	b.WriteString(r.SourceFile)
	b.WriteByte(fieldSep)
	b.WriteString(strconv.Itoa(r.SourceRow))
	b.WriteByte(fieldSep)
	b.WriteString(r.Period.String())
	b.WriteByte(fieldSep)
	b.WriteString(r.RawValue)
	sum := xxh3.Hash128([]byte(b.String())).Bytes()
	return fmt.Sprintf("%x", sum)
}
