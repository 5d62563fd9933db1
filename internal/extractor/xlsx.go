package extractor

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// sheetForService maps a service code to the sheet that carries its data in
// the published workbooks. Sheet names have been stable across years.
var sheetForService = map[string]string{
	"SMP":  "Móvel_Pessoal",
	"SCM":  "Banda_Larga_Fixa",
	"STFC": "Telefonia_Fixa",
}

// XLSX extracts rows from Office Open XML workbooks.
type XLSX struct{}

// Extract opens the workbook, picks the service's sheet (falling back to
// scanning all sheets for one with a recognizable header), and returns the
// row cursor. An unreadable workbook or an undetectable header yields
// ErrMalformedSource.
func (XLSX) Extract(ctx context.Context, r io.Reader, src Source) (*Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", src.Filename, ErrMalformedSource, err)
	}
	defer f.Close()

	if sheet, ok := sheetForService[src.Service]; ok {
		if grid, err := f.GetRows(sheet); err == nil {
			if rows, err := newRows(grid, src); err == nil {
				return rows, nil
			}
		}
	}

	// The expected sheet is missing or has no usable header; some years ship
	// with renamed sheets. Take the first sheet that scores a header.
	for _, sheet := range f.GetSheetList() {
		grid, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if rows, err := newRows(grid, src); err == nil {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", src.Filename, ErrMalformedSource)
}
