// Package reporting builds downloadable daily incident reports from the
// record store's per-day listing.
package reporting

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	breakdown "fleetops-cloud/internal/breakdown/domain"
)

// BuildDailyReportPDF renders a day's incidents as a PDF table.
func BuildDailyReportPDF(day string, records []breakdown.Record) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Daily Breakdown Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Day: %s", day))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Incidents: %d", len(records)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(20, 6, "Route", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Occurred", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Priority", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Delay", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Reporter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Reason", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range records {
		pdf.CellFormat(20, 6, record.RouteNumber, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, record.OccurredOn, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, record.Priority, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d min", record.DelayMinutes), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, record.ReportedBy, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, record.Reason, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDailyReportXLSX renders a day's incidents as an XLSX workbook.
func BuildDailyReportXLSX(day string, records []breakdown.Record) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	incidentSheet := "incidents"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(incidentSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Daily Breakdown Report")
	_ = f.SetCellValue(summarySheet, "A3", "Day")
	_ = f.SetCellValue(summarySheet, "B3", day)
	_ = f.SetCellValue(summarySheet, "A4", "Incidents")
	_ = f.SetCellValue(summarySheet, "B4", len(records))

	_ = f.SetCellValue(incidentSheet, "A1", "Route")
	_ = f.SetCellValue(incidentSheet, "B1", "Occurred")
	_ = f.SetCellValue(incidentSheet, "C1", "Priority")
	_ = f.SetCellValue(incidentSheet, "D1", "Delay (min)")
	_ = f.SetCellValue(incidentSheet, "E1", "Reporter")
	_ = f.SetCellValue(incidentSheet, "F1", "Reason")
	_ = f.SetCellValue(incidentSheet, "G1", "Description")
	for i, record := range records {
		row := i + 2
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("A%d", row), record.RouteNumber)
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("B%d", row), record.OccurredOn)
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("C%d", row), record.Priority)
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("D%d", row), record.DelayMinutes)
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("E%d", row), record.ReportedBy)
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("F%d", row), record.Reason)
		_ = f.SetCellValue(incidentSheet, fmt.Sprintf("G%d", row), record.Description)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
