package normalizer

import (
	"testing"
	"time"

	"idaetl/internal/extractor"
	"idaetl/internal/records"
)

var testSrc = extractor.Source{Filename: "SMP2017.xlsx", Service: "SMP"}

var testLabels = []string{
	extractor.LabelGroup, extractor.LabelVariable, "2017-01", "2017-02", "Obs.",
}

func row(line int, cells map[string]string) extractor.RawRow {
	return extractor.RawRow{Line: line, Cells: cells}
}

func TestApplyUnpivotsMonths(t *testing.T) {
	t.Parallel()

	n := New(testLabels, testSrc)
	if n.MonthColumns() != 2 {
		t.Fatalf("MonthColumns() = %d, want 2", n.MonthColumns())
	}

	out := n.Apply(row(12, map[string]string{
		extractor.LabelGroup:    "Claro S.A.",
		extractor.LabelVariable: "Taxa de Respondidas em 5 dias Úteis",
		"2017-01":               "85,3",
		"2017-02":               "90%",
		"Obs.":                  "nota de rodapé",
	}))
	if out.Dropped {
		t.Fatal("row dropped")
	}
	if len(out.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(out.Records))
	}

	rec := out.Records[0]
	if rec.GroupCode != "CLARO" {
		t.Errorf("GroupCode = %q, want CLARO", rec.GroupCode)
	}
	if rec.GroupName != "Claro S.A." {
		t.Errorf("GroupName = %q", rec.GroupName)
	}
	if rec.VariableCode != "TAXA_RESP_5DIAS" {
		t.Errorf("VariableCode = %q, want TAXA_RESP_5DIAS", rec.VariableCode)
	}
	if rec.ServiceCode != "SMP" {
		t.Errorf("ServiceCode = %q, want SMP", rec.ServiceCode)
	}
	if rec.Period != (records.Period{Year: 2017, Month: time.January}) {
		t.Errorf("Period = %v", rec.Period)
	}
	if got := rec.Value.String(); got != "85.3" {
		t.Errorf("Value = %s, want 85.3", got)
	}
	if rec.RawValue != "85,3" {
		t.Errorf("RawValue = %q", rec.RawValue)
	}
	if rec.SourceFile != "SMP2017.xlsx" || rec.SourceRow != 12 {
		t.Errorf("provenance = %q:%d", rec.SourceFile, rec.SourceRow)
	}

	// Percent sign stripped, value kept as published.
	if got := out.Records[1].Value.String(); got != "90" {
		t.Errorf("second Value = %s, want 90", got)
	}
}

func TestApplyGroupAliases(t *testing.T) {
	t.Parallel()

	n := New(testLabels, testSrc)
	cases := []struct{ in, want string }{
		{"TELEFÔNICA BRASIL S.A.", "VIVO"},
		{"Telefonica Brasil S.A.", "VIVO"},
		{"OI S.A.", "OI"},
		{"ALGAR TELECOM S/A", "ALGAR"},
		{"Sky Brasil Serviços Ltda.", "SKY"},
		{"EMPRESA BRASILEIRA DE TELECOMUNICAÇÕES S.A. - EMBRATEL", "EMBRATEL"},
	}
	for _, tc := range cases {
		out := n.Apply(row(1, map[string]string{
			extractor.LabelGroup:    tc.in,
			extractor.LabelVariable: "Taxa de Reabertas",
			"2017-01":               "1",
		}))
		if out.Dropped || len(out.Records) != 1 {
			t.Fatalf("%q: unexpected outcome %+v", tc.in, out)
		}
		if got := out.Records[0].GroupCode; got != tc.want {
			t.Errorf("GroupCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestApplyNovelProviderPassesThrough(t *testing.T) {
	t.Parallel()

	n := New(testLabels, testSrc)
	out := n.Apply(row(3, map[string]string{
		extractor.LabelGroup:    "Foo Telecom Ltda.",
		extractor.LabelVariable: "Taxa de Reabertas",
		"2017-01":               "2,5",
	}))
	if out.Dropped || len(out.Records) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if got := out.Records[0].GroupCode; got != "FOO_TELECOM_LTDA" {
		t.Errorf("GroupCode = %q, want FOO_TELECOM_LTDA", got)
	}
	if got := out.Records[0].GroupName; got != "Foo Telecom Ltda." {
		t.Errorf("GroupName = %q", got)
	}
}

func TestApplyDropsUnknownVariable(t *testing.T) {
	t.Parallel()

	n := New(testLabels, testSrc)
	out := n.Apply(row(4, map[string]string{
		extractor.LabelGroup:    "CLARO S.A.",
		extractor.LabelVariable: "Total Geral",
		"2017-01":               "999",
	}))
	if !out.Dropped || len(out.Records) != 0 {
		t.Fatalf("unknown variable not dropped: %+v", out)
	}
}

func TestApplyDropsBlankIdentity(t *testing.T) {
	t.Parallel()

	n := New(testLabels, testSrc)
	out := n.Apply(row(5, map[string]string{
		extractor.LabelGroup:    "",
		extractor.LabelVariable: "Taxa de Reabertas",
		"2017-01":               "1",
	}))
	if !out.Dropped {
		t.Fatal("blank group not dropped")
	}
}

func TestApplySkipsUnusableCells(t *testing.T) {
	t.Parallel()

	n := New(testLabels, testSrc)
	out := n.Apply(row(6, map[string]string{
		extractor.LabelGroup:    "TIM S.A.",
		extractor.LabelVariable: "Quantidade de Reclamações",
		"2017-01":               "-",
		"2017-02":               "",
	}))
	if out.Dropped {
		t.Fatal("row dropped")
	}
	if len(out.Records) != 0 {
		t.Fatalf("got %d records, want 0", len(out.Records))
	}
	if out.SkippedCells != 2 {
		t.Errorf("SkippedCells = %d, want 2", out.SkippedCells)
	}
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"85,3", "85.3", true},
		{"90%", "90", true},
		{"1.5", "1.5", true},
		{" 42 ", "42", true},
		{"0", "0", true},
		{"-3,2", "-3.2", true},
		{"-", "", false},
		{"", "", false},
		{"nan", "", false},
		{"NaN", "", false},
		{"n/d", "", false},
		{"1.234,56", "", false}, // thousands separators are not tolerated
	}
	for _, tc := range cases {
		got, ok := parseValue(tc.in)
		if ok != tc.ok {
			t.Errorf("parseValue(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got.String() != tc.want {
			t.Errorf("parseValue(%q) = %s, want %s", tc.in, got.String(), tc.want)
		}
	}
}
