package export

import (
	"fmt"

	"gardenplan/internal/service"

	"github.com/xuri/excelize/v2"
)

// OverviewXLSX renders the monthly report rows as a single-sheet Excel
// workbook named after the plan month.
func OverviewXLSX(planKey string, rows []service.ReportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := planKey
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Date", "Gardener", "Address", "Notes"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		values := []string{row.Date, row.Gardener, row.Address, row.Notes}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "D", 24); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
