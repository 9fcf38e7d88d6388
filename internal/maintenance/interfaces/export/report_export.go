package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	maintenance "smart-maintenance/internal/maintenance/domain"
)

// BuildReportPDF renders a maintenance report as PDF.
func BuildReportPDF(report *maintenance.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("export: nil report")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.Cell(0, 8, "Maintenance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Report: %s", report.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Device: %s", report.DeviceID)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Risk Score: %.2f (previous %.2f)", report.Assessment.RiskScore, report.Assessment.PreviousRisk))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Failure Modes: %s", joinOrNone(report.Assessment.FailureModes))))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alert: %s (threshold %.2f)", alertStatus(report), report.Alert.Threshold))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("ETA (hours): %.2f", report.Plan.ETAHours()))
	pdf.Ln(8)

	section := func(title string, lines []string, numbered bool) {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, title)
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		if len(lines) == 0 {
			pdf.MultiCell(0, 5, "-", "", "L", false)
		}
		for i, line := range lines {
			prefix := "- "
			if numbered {
				prefix = fmt.Sprintf("%d. ", i+1)
			}
			pdf.MultiCell(0, 5, tr(prefix+line), "", "L", false)
		}
		pdf.Ln(2)
	}
	section("Steps", report.Plan.Steps, true)
	section("Lockout/Tagout", report.Plan.LockoutTagout, false)
	section("Parts", report.Plan.Parts, false)
	section("Rollback", report.Plan.Rollback, false)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Document", "1", 0, "C", false, 0, "")
	pdf.CellFormat(100, 6, "Title", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Score", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, snippet := range report.Evidence {
		pdf.CellFormat(30, 6, tr(snippet.DocumentID), "1", 0, "L", false, 0, "")
		pdf.CellFormat(100, 6, tr(snippet.Title), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", snippet.Score), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if report.IsDegraded() {
		pdf.Ln(4)
		var notes []string
		for _, marker := range report.Degraded {
			notes = append(notes, fmt.Sprintf("%s: %s", marker.Stage, marker.Reason))
		}
		section("Degraded", notes, false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a maintenance report as XLSX.
func BuildReportXLSX(report *maintenance.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("export: nil report")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	planSheet := "plan"
	evidenceSheet := "evidence"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(planSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(evidenceSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Report", report.ID},
		{"Device", report.DeviceID},
		{"Generated", report.GeneratedAt.Format(time.RFC3339)},
		{"Risk Score", report.Assessment.RiskScore},
		{"Previous Risk", report.Assessment.PreviousRisk},
		{"Failure Modes", joinOrNone(report.Assessment.FailureModes)},
		{"Alert", alertStatus(report)},
		{"Alert Threshold", report.Alert.Threshold},
		{"ETA (hours)", report.Plan.ETAHours()},
		{"Degraded", len(report.Degraded)},
	}
	_ = f.SetCellValue(summarySheet, "A1", "Maintenance Report")
	for i, row := range summary {
		r := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), row[1])
	}

	_ = f.SetCellValue(planSheet, "A1", "Section")
	_ = f.SetCellValue(planSheet, "B1", "Item")
	row := 2
	for _, part := range []struct {
		name  string
		items []string
	}{
		{"step", report.Plan.Steps},
		{"lockout_tagout", report.Plan.LockoutTagout},
		{"part", report.Plan.Parts},
		{"rollback", report.Plan.Rollback},
	} {
		for _, item := range part.items {
			_ = f.SetCellValue(planSheet, fmt.Sprintf("A%d", row), part.name)
			_ = f.SetCellValue(planSheet, fmt.Sprintf("B%d", row), item)
			row++
		}
	}

	_ = f.SetCellValue(evidenceSheet, "A1", "Document")
	_ = f.SetCellValue(evidenceSheet, "B1", "Title")
	_ = f.SetCellValue(evidenceSheet, "C1", "Source")
	_ = f.SetCellValue(evidenceSheet, "D1", "Score")
	_ = f.SetCellValue(evidenceSheet, "E1", "Excerpt")
	for i, snippet := range report.Evidence {
		r := i + 2
		_ = f.SetCellValue(evidenceSheet, fmt.Sprintf("A%d", r), snippet.DocumentID)
		_ = f.SetCellValue(evidenceSheet, fmt.Sprintf("B%d", r), snippet.Title)
		_ = f.SetCellValue(evidenceSheet, fmt.Sprintf("C%d", r), snippet.Source)
		_ = f.SetCellValue(evidenceSheet, fmt.Sprintf("D%d", r), snippet.Score)
		_ = f.SetCellValue(evidenceSheet, fmt.Sprintf("E%d", r), snippet.Excerpt)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func alertStatus(report *maintenance.Report) string {
	switch {
	case !report.Alert.Triggered:
		return "NO_ALERT"
	case report.Alert.Delivered:
		return "TRIGGERED"
	default:
		return "TRIGGERED (undelivered)"
	}
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
