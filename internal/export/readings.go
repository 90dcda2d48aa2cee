package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/quality"
)

// SheetName is the worksheet holding the exported readings
const SheetName = "Readings"

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header lists the exported columns in order
var Header = []string{
	"Timestamp (UTC)",
	"Location",
	"pH",
	"Turbidity (NTU)",
	"Temperature (°C)",
	"Dissolved Oxygen (mg/L)",
	"Total Coliform (CFU/100ml)",
	"E. coli (CFU/100ml)",
	"Chlorine (mg/L)",
	"Overall Status",
}

var columnWidths = []float64{20, 22, 8, 16, 17, 22, 25, 20, 16, 15}

// ReadingsWorkbook renders readings into an xlsx file, one row per reading.
// Rows whose overall status is not good are highlighted.
func ReadingsWorkbook(readings []*database.Reading) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close is called explicitly below

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	for col, header := range Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, styles.header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range readings {
		row := i + 2
		status := quality.Evaluate(r).Worst()

		values := []interface{}{
			r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			r.Location,
			r.PH,
			r.Turbidity,
			r.Temperature,
			r.DissolvedOxygen,
			r.TotalColiform,
			r.EColi,
			r.Chlorine,
			string(status),
		}

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}

		if style, ok := styles.status[status]; ok {
			end, _ := excelize.CoordinatesToCellName(len(Header), row)
			if err := f.SetCellStyle(SheetName, start, end, style); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to style row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

type workbookStyles struct {
	header int
	status map[quality.Status]int
}

func newStyles(f *excelize.File) (*workbookStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	warning, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF4CC"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create warning style: %w", err)
	}

	critical, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFD6D6"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create critical style: %w", err)
	}

	return &workbookStyles{
		header: header,
		status: map[quality.Status]int{
			quality.StatusWarning:  warning,
			quality.StatusCritical: critical,
		},
	}, nil
}
