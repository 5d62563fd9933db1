package extractor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes grid into a workbook under the given sheet name and
// returns the serialized bytes.
func buildWorkbook(t *testing.T, sheet string, grid [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	idx, err := f.NewSheet(sheet)
	if err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetActiveSheet(idx)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("DeleteSheet: %v", err)
		}
	}
	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.Bytes()
}

var workbookGrid = [][]any{
	{"Indicador de Desempenho no Atendimento", ""},
	{"GRUPO ECONÔMICO", "VARIÁVEL", "2017-01", "2017-02"},
	{"VIVO", "Taxa de Respondidas em 5 dias Úteis", "88,1", "87,2"},
	{"", "Quantidade de Reclamações", "120", "95"},
}

func TestXLSXExtractServiceSheet(t *testing.T) {
	t.Parallel()

	data := buildWorkbook(t, "Móvel_Pessoal", workbookGrid)
	rows, err := XLSX{}.Extract(context.Background(), bytes.NewReader(data), Source{
		Filename: "SMP2017.xlsx",
		Service:  "SMP",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	n := 0
	for rows.Next() {
		n++
		if got := rows.Row().Cells[LabelGroup]; got != "VIVO" {
			t.Errorf("row %d group = %q, want VIVO (forward fill)", n, got)
		}
	}
	if n != 2 {
		t.Fatalf("got %d data rows, want 2", n)
	}
}

func TestXLSXExtractFallbackSheetScan(t *testing.T) {
	t.Parallel()

	// Sheet name does not match the service; the scan must still find it.
	data := buildWorkbook(t, "Planilha_2017", workbookGrid)
	rows, err := XLSX{}.Extract(context.Background(), bytes.NewReader(data), Source{
		Filename: "SMP2017.xlsx",
		Service:  "SMP",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := rows.Labels()[1]; got != LabelVariable {
		t.Errorf("second label = %q, want %q", got, LabelVariable)
	}
}

func TestXLSXExtractUnreadable(t *testing.T) {
	t.Parallel()

	_, err := XLSX{}.Extract(context.Background(), strings.NewReader("this is not a workbook"), Source{
		Filename: "broken.xlsx",
	})
	if !errors.Is(err, ErrMalformedSource) {
		t.Fatalf("err = %v, want ErrMalformedSource", err)
	}
}

func TestXLSXExtractNoUsableHeader(t *testing.T) {
	t.Parallel()

	data := buildWorkbook(t, "Notas", [][]any{
		{"Apenas texto livre"},
		{"sem cabeçalho algum"},
	})
	_, err := XLSX{}.Extract(context.Background(), bytes.NewReader(data), Source{Filename: "notes.xlsx"})
	if !errors.Is(err, ErrMalformedSource) {
		t.Fatalf("err = %v, want ErrMalformedSource", err)
	}
}
