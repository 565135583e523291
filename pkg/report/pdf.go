package report

import (
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// GeneratePDF renders the report to a PDF file.
func GeneratePDF(d Data, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Power Usage Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s to %s", d.WindowStart.Format(time.RFC3339), d.WindowEnd.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Granularity: %s", d.Granularity))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Rates from: %s", d.RatesSource))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", d.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Channel", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Total (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Mean (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "$/kWh", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Cost", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, ch := range d.Channels {
		pdf.CellFormat(50, 6, ch.Channel, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", ch.TotalKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", ch.MeanKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.4f", ch.RatePerKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", ch.Cost), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "TOTAL", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", d.TotalKWh), "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, "", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, "", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", d.TotalCost), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return pdf.Output(out)
}
