package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// GenerateXLSX renders the report to an XLSX file with summary and
// channels sheets.
func GenerateXLSX(d Data, path string) error {
	f := excelize.NewFile()
	summarySheet := "summary"
	channelsSheet := "channels"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(channelsSheet); err != nil {
		return err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Power Usage Report")
	_ = f.SetCellValue(summarySheet, "A3", "Window start")
	_ = f.SetCellValue(summarySheet, "B3", d.WindowStart.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Window end")
	_ = f.SetCellValue(summarySheet, "B4", d.WindowEnd.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Granularity")
	_ = f.SetCellValue(summarySheet, "B5", d.Granularity)
	_ = f.SetCellValue(summarySheet, "A6", "Rates from")
	_ = f.SetCellValue(summarySheet, "B6", d.RatesSource)
	_ = f.SetCellValue(summarySheet, "A7", "Generated")
	_ = f.SetCellValue(summarySheet, "B7", d.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A9", "Total kWh")
	_ = f.SetCellValue(summarySheet, "B9", d.TotalKWh)
	_ = f.SetCellValue(summarySheet, "A10", "Total cost")
	_ = f.SetCellValue(summarySheet, "B10", d.TotalCost)

	headers := []string{"Channel", "Total kWh", "Mean kWh", "$/kWh", "Cost"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(channelsSheet, cell, h)
	}
	for row, ch := range d.Channels {
		values := []any{ch.Channel, ch.TotalKWh, ch.MeanKWh, ch.RatePerKWh, ch.Cost}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(channelsSheet, cell, v)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return f.Close()
}
