package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ExpandWorkbook fans a spreadsheet workbook out into one ingestion attempt
// per sheet: each sheet streams to a temporary CSV and routes through the
// tabular router under the sheet's title. Every sheet's outcome is
// reported; the scratch directory is removed once all sheets are done.
func (s *Service) ExpandWorkbook(ctx context.Context, path string) []Result {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return []Result{{
			Status:    false,
			TableName: CleanString(BaseName(filepath.Base(path))),
			Error:     fmt.Sprintf("could not open workbook: %v", err),
		}}
	}
	defer wb.Close()

	scratch := filepath.Join(s.MediaDir, uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return []Result{{
			Status:    false,
			TableName: CleanString(BaseName(filepath.Base(path))),
			Error:     fmt.Sprintf("could not create scratch dir: %v", err),
		}}
	}
	defer os.RemoveAll(scratch)

	var results []Result
	for _, sheet := range wb.GetSheetList() {
		csvPath := filepath.Join(scratch, CleanString(sheet)+".csv")
		if err := writeSheetCSV(wb, sheet, csvPath); err != nil {
			log.Printf("[upload] could not extract sheet %s: %v", sheet, err)
			results = append(results, Result{
				Status:    false,
				TableName: CleanString(sheet),
				Error:     fmt.Sprintf("could not read sheet: %v", err),
			})
			continue
		}
		results = append(results, s.UploadCSVFile(ctx, csvPath, sheet))
	}
	return results
}

func writeSheetCSV(wb *excelize.File, sheet, csvPath string) error {
	rows, err := wb.Rows(sheet)
	if err != nil {
		return err
	}
	defer rows.Close()

	out, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return err
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return rows.Error()
}
