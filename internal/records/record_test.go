package records

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"2017-01", Period{2017, time.January}, true},
		{" 2019-12 ", Period{2019, time.December}, true},
		{"2018-06-01", Period{2018, time.June}, true},
		{"2018-06-01 00:00:00", Period{2018, time.June}, true},
		{"GRUPO ECONÔMICO", Period{}, false},
		{"2017-13", Period{}, false},
		{"2017-00", Period{}, false},
		{"1999-01", Period{}, false},
		{"2017/01", Period{}, false},
		{"", Period{}, false},
		{"Total", Period{}, false},
	}
	for _, tc := range cases {
		got, ok := ParsePeriod(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParsePeriod(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPeriodAttributes(t *testing.T) {
	t.Parallel()

	p := Period{Year: 2018, Month: time.August}
	if got := p.String(); got != "2018-08" {
		t.Errorf("String() = %q", got)
	}
	if got := p.Date(); got != "2018-08-01" {
		t.Errorf("Date() = %q", got)
	}
	if got := p.Quarter(); got != 3 {
		t.Errorf("Quarter() = %d", got)
	}
	if got := p.Semester(); got != 2 {
		t.Errorf("Semester() = %d", got)
	}
	if got := p.MonthName(); got != "Agosto" {
		t.Errorf("MonthName() = %q", got)
	}
	if got := (Period{2017, time.March}).MonthName(); got != "Março" {
		t.Errorf("MonthName() = %q", got)
	}
}

func TestDigestStable(t *testing.T) {
	t.Parallel()

	rec := Record{
		Period:     Period{2017, time.January},
		SourceFile: "SMP2017.xlsx",
		SourceRow:  12,
		RawValue:   "85,3",
	}
	d1 := rec.Digest()
	d2 := rec.Digest()
	if d1 != d2 {
		t.Fatalf("digest not stable: %s vs %s", d1, d2)
	}
	if len(d1) != 32 {
		t.Fatalf("digest length = %d, want 32 hex chars", len(d1))
	}
}

func TestDigestDiscriminates(t *testing.T) {
	t.Parallel()

	base := Record{
		Period:     Period{2017, time.January},
		SourceFile: "SMP2017.xlsx",
		SourceRow:  12,
		RawValue:   "100",
	}

	// Same row, same raw value, different month column: distinct records.
	other := base
	other.Period = Period{2017, time.February}
	if base.Digest() == other.Digest() {
		t.Error("digests equal across month columns")
	}

	other = base
	other.RawValue = "100,0"
	if base.Digest() == other.Digest() {
		t.Error("digests equal across raw values")
	}

	other = base
	other.SourceRow = 13
	if base.Digest() == other.Digest() {
		t.Error("digests equal across rows")
	}

	other = base
	other.SourceFile = "STFC2017.xlsx"
	if base.Digest() == other.Digest() {
		t.Error("digests equal across files")
	}
}
