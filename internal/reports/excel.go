// Package reports renders read models as xlsx workbooks.
package reports

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of every workbook produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet is one worksheet: a bold heading row followed by data rows.
type Sheet struct {
	Name     string
	Headings []string
	Rows     [][]any
}

// Workbook renders sheets in order. The default Sheet1 is replaced by the first sheet.
func Workbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, err
		}

		for col, h := range s.Headings {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(s.Name, cell, h); err != nil {
				return nil, err
			}
		}
		if len(s.Headings) > 0 {
			last, _ := excelize.CoordinatesToCellName(len(s.Headings), 1)
			if err := f.SetCellStyle(s.Name, "A1", last, bold); err != nil {
				return nil, err
			}
		}

		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				return nil, fmt.Errorf("write %s row %d: %w", s.Name, r+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
