package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/mastoflow/mastoflow/pkg/store"
)

// writeWorkbook renders the four analysis views into one XLSX workbook,
// one sheet per view, for consumers who skip the CSVs entirely.
func (e *Exporter) writeWorkbook(ctx context.Context) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, view := range store.ViewNames() {
		if i == 0 {
			// Reuse the default sheet for the first view.
			if err := f.SetSheetName("Sheet1", view); err != nil {
				return err
			}
		} else {
			if _, err := f.NewSheet(view); err != nil {
				return err
			}
		}
		if err := e.fillSheet(ctx, f, view); err != nil {
			return fmt.Errorf("sheet %s: %w", view, err)
		}
	}

	path := filepath.Join(e.dir, "mastodon_analysis.xlsx")
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (e *Exporter) fillSheet(ctx context.Context, f *excelize.File, view string) error {
	rows, err := e.store.DB().QueryContext(ctx, "SELECT * FROM "+view)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(view, "A1", &header); err != nil {
		return err
	}

	rowNum := 2
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		out := make([]any, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				out[i] = string(b)
			} else {
				out[i] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(view, cell, &out); err != nil {
			return err
		}
		rowNum++
	}
	return rows.Err()
}
