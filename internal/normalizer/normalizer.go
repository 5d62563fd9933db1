// Package normalizer maps raw spreadsheet rows onto canonical records.
//
// A source row carries one provider and one variable, with one value cell per
// month column; normalization unpivots it into zero or more records. All
// identifier matching happens on folded text (see internal/textutil) because
// the published files are inconsistent about accents, casing, and punctuation.
//
// Row-level problems are never errors: unusable rows and cells are dropped
// and counted, and the resource proceeds.
package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"

	"idaetl/internal/extractor"
	"idaetl/internal/records"
	"idaetl/internal/textutil"
)

// groupAliases collapses historical provider name variants onto canonical
// group codes. Keys are folded (accent-free, upper case). Providers absent
// from this table pass through with their literal cleaned name as code: new
// entrants must be accepted, not rejected.
var groupAliases = map[string]string{
	"ALGAR TELECOM S/A":        "ALGAR",
	"CLARO S.A.":               "CLARO",
	"TELEFONICA BRASIL S.A.":   "VIVO",
	"TIM S.A.":                 "TIM",
	"OI S.A.":                  "OI",
	"NET SERVICOS DE COMUNICACAO S.A.":                       "NET",
	"SKY BRASIL SERVICOS LTDA.":                              "SKY",
	"EMPRESA BRASILEIRA DE TELECOMUNICACOES S.A. - EMBRATEL": "EMBRATEL",
	"NEXTEL TELECOMUNICACOES LTDA.":                          "NEXTEL",
	"SERCOMTEL S.A. TELECOMUNICACOES":                        "SERCOMTEL",
}

// variableCodes maps folded variable names onto the fixed variable code
// table. Rows whose variable is not listed here are dropped silently; the
// files mix footnote and subtotal rows between metric rows.
var variableCodes = map[string]string{
	"INDICADOR DE DESEMPENHO NO ATENDIMENTO (IDA)":  "IDA",
	"INDICE DE RECLAMACOES":                         "INDICE_RECL",
	"QUANTIDADE DE ACESSOS EM SERVICO":              "QTD_ACESSOS",
	"QUANTIDADE DE REABERTAS":                       "QTD_REABERTAS",
	"QUANTIDADE DE RECLAMACOES":                     "QTD_RECLAMACOES",
	"QUANTIDADE DE RECLAMACOES NO PERIODO":          "QTD_RECL_PERIODO",
	"QUANTIDADE DE RESPONDIDAS":                     "QTD_RESPONDIDAS",
	"QUANTIDADE DE SOL. RESPONDIDAS EM ATE 5 DIAS":  "QTD_RESP_5DIAS",
	"QUANTIDADE DE SOL. RESPONDIDAS NO PERIODO":     "QTD_RESP_PERIODO",
	"TAXA DE REABERTAS":                             "TAXA_REABERTAS",
	"TAXA DE RESPONDIDAS EM 5 DIAS UTEIS":           "TAXA_RESP_5DIAS",
	"TAXA DE RESPONDIDAS NO PERIODO":                "TAXA_RESP_PERIODO",
}

// PrincipalVariable is the single metric driving the downstream
// month-over-month variation view.
const PrincipalVariable = "TAXA_RESP_5DIAS"

// monthColumn binds a detected month label to its parsed period.
type monthColumn struct {
	label  string
	period records.Period
}

// RowNormalizer normalizes the rows of one resource. The month-column set is
// derived once from the detected header and applied to every row.
type RowNormalizer struct {
	src    extractor.Source
	months []monthColumn
}

// Outcome reports what one raw row produced.
type Outcome struct {
	// Records are the canonical records unpivoted from the row, one per
	// month column with a usable value.
	Records []records.Record

	// SkippedCells counts month cells with missing or non-numeric values.
	// Absence of data is a legitimate state, not a failure.
	SkippedCells int

	// Dropped is true when the whole row was unusable: blank identity cells
	// or a variable outside the code table.
	Dropped bool
}

// New builds a RowNormalizer for a resource from its detected column labels.
func New(labels []string, src extractor.Source) *RowNormalizer {
	n := &RowNormalizer{src: src}
	for _, label := range labels {
		if p, ok := records.ParsePeriod(label); ok {
			n.months = append(n.months, monthColumn{label: label, period: p})
		}
	}
	return n
}

// MonthColumns reports how many month columns were recognized. A resource
// with zero month columns cannot produce records.
func (n *RowNormalizer) MonthColumns() int { return len(n.months) }

// Apply normalizes one raw row. Non-month columns other than the identity
// pair are ignored (footnote columns occur in some files).
func (n *RowNormalizer) Apply(row extractor.RawRow) Outcome {
	group := textutil.Clean(row.Cells[extractor.LabelGroup])
	variable := textutil.Clean(row.Cells[extractor.LabelVariable])
	if group == "" || variable == "" {
		return Outcome{Dropped: true}
	}

	varCode, ok := variableCodes[textutil.Fold(variable)]
	if !ok {
		return Outcome{Dropped: true}
	}
	groupCode, ok := groupAliases[textutil.Fold(group)]
	if !ok {
		groupCode = textutil.Slug(group)
		if groupCode == "" {
			return Outcome{Dropped: true}
		}
	}

	var out Outcome
	for _, mc := range n.months {
		raw := strings.TrimSpace(row.Cells[mc.label])
		val, ok := parseValue(raw)
		if !ok {
			out.SkippedCells++
			continue
		}
		out.Records = append(out.Records, records.Record{
			Period:       mc.period,
			GroupCode:    groupCode,
			GroupName:    group,
			ServiceCode:  n.src.Service,
			VariableCode: varCode,
			Value:        val,
			RawValue:     raw,
			SourceFile:   n.src.Filename,
			SourceRow:    row.Line,
		})
	}
	return out
}

// parseValue converts a raw cell into a decimal. Decimal commas and percent
// signs are tolerated; empty markers ("", "-", "nan") and anything else
// non-numeric report ok=false.
func parseValue(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "", s == "-", strings.EqualFold(s, "nan"):
		return decimal.Decimal{}, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, "%", "")
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}
