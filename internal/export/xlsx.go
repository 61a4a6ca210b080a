package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"clausewise/internal/domain"
)

const sheetName = "Contracts"

// WriteXLSX writes contracts as a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, contracts []domain.Contract) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("export.WriteXLSX header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export.WriteXLSX style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("export.WriteXLSX style: %w", err)
	}

	for i := range contracts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export.WriteXLSX: %w", err)
		}
		row := contractToRow(&contracts[i])
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		// Chunk count is numeric in the sheet.
		values[2] = contracts[i].ChunkCount
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("export.WriteXLSX row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 32); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	if err := f.SetColWidth(sheetName, "E", "G", 60); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export.WriteXLSX write: %w", err)
	}
	return nil
}
