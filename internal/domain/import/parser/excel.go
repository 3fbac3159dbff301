package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/seguro-locacao/internal/domain/import/sniffer"
)

// ParseExcel reads an XLSX workbook.
func (p *Parser) ParseExcel(reader io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := p.findSheet(f)
	if sheetName == "" {
		return nil, ErrNoSheet
	}

	// Raw values keep numbers and dates independent of the cell number
	// format: 1200.97 stays "1200.97" and a date is its serial day number.
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	return newSheet(sheetName, sniffer.FormatXLSX, rows, nil)
}

// findSheet returns the configured sheet when present, else the active one,
// else the first.
func (p *Parser) findSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	if p.config.SheetName != "" {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, p.config.SheetName) {
				return sheet
			}
		}
	}

	if active := f.GetSheetName(f.GetActiveSheetIndex()); active != "" {
		return active
	}
	return sheets[0]
}

// ParseXLS reads a legacy BIFF (.xls) workbook.
func (p *Parser) ParseXLS(reader io.ReadSeeker) (*Sheet, error) {
	wb, err := xls.OpenReader(reader, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open XLS file: %w", err)
	}

	ws := p.findXLSSheet(wb)
	if ws == nil {
		return nil, ErrNoSheet
	}

	records := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, sniffer.NormalizeText(row.Col(c)))
		}
		records = append(records, cells)
	}
	return newSheet(ws.Name, sniffer.FormatXLS, records, nil)
}

func (p *Parser) findXLSSheet(wb *xls.WorkBook) *xls.WorkSheet {
	if wb.NumSheets() == 0 {
		return nil
	}
	if p.config.SheetName != "" {
		for i := 0; i < wb.NumSheets(); i++ {
			if ws := wb.GetSheet(i); ws != nil && strings.EqualFold(ws.Name, p.config.SheetName) {
				return ws
			}
		}
	}
	return wb.GetSheet(0)
}

// CellUpdate sets data row Row (0-based, as in Sheet.Rows), column Col.
type CellUpdate struct {
	Row   int
	Col   int
	Value string
}

// WriteFilled writes sheet as an XLSX workbook with updates applied as string
// cells. An XLSX source is edited in place so formatting and other sheets are
// preserved; other formats are rebuilt from the parsed rows.
func WriteFilled(w io.Writer, source []byte, sheet *Sheet, updates []CellUpdate) error {
	f, sheetName, err := openForFill(source, sheet)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, u := range updates {
		cell, err := excelize.CoordinatesToCellName(u.Col+1, sheet.RowNumber(u.Row))
		if err != nil {
			return fmt.Errorf("failed to address cell (%d,%d): %w", u.Row, u.Col, err)
		}
		if err := f.SetCellStr(sheetName, cell, u.Value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func openForFill(source []byte, sheet *Sheet) (*excelize.File, string, error) {
	if sheet.Format == sniffer.FormatXLSX {
		f, err := excelize.OpenReader(bytes.NewReader(source))
		if err != nil {
			return nil, "", fmt.Errorf("failed to open Excel file: %w", err)
		}
		return f, sheet.Name, nil
	}

	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	if sheet.Name != "" && sheet.Name != sheetName {
		if err := f.SetSheetName(sheetName, sheet.Name); err != nil {
			f.Close()
			return nil, "", fmt.Errorf("failed to rename sheet: %w", err)
		}
		sheetName = sheet.Name
	}

	write := func(rowNum int, cells []string) error {
		for col, value := range cells {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(sheetName, cell, value); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(1, sheet.Headers); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range sheet.Rows {
		if err := write(sheet.RowNumber(i), row); err != nil {
			f.Close()
			return nil, "", fmt.Errorf("failed to write row %d: %w", sheet.RowNumber(i), err)
		}
	}
	return f, sheetName, nil
}
