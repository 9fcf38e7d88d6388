package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	alerts "smart-maintenance/internal/alerts/domain"
	evidence "smart-maintenance/internal/evidence/domain"
	maintenance "smart-maintenance/internal/maintenance/domain"
	plan "smart-maintenance/internal/plan/domain"
	risk "smart-maintenance/internal/risk/domain"
)

func exportReport() *maintenance.Report {
	return &maintenance.Report{
		ID:          "r-1",
		DeviceID:    "pump-17",
		Assessment:  risk.Assessment{RiskScore: 0.8, FailureModes: []string{"overheat", "thermal_runaway"}},
		Evidence:    []evidence.Snippet{{DocumentID: "kb-1", Title: "Pump overheating", Source: "kb", Score: 2.5, Excerpt: "Check coolant"}},
		Plan:        plan.RepairPlan{Steps: []string{"Apply lockout", "Clear cooling passages"}, Parts: []string{"Bearing kit"}, ETA: 90 * time.Minute},
		Alert:       alerts.Event{Triggered: true, Delivered: true, Threshold: 0.7},
		Degraded:    []maintenance.DegradedMarker{{Stage: maintenance.StateDispatching, Reason: "timeout"}},
		GeneratedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestBuildReportPDF(t *testing.T) {
	data, err := BuildReportPDF(exportReport())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf header, got %q", data[:8])
	}
	if _, err := BuildReportPDF(nil); err == nil {
		t.Fatal("expected nil report error")
	}
}

func TestBuildReportXLSX(t *testing.T) {
	data, err := BuildReportXLSX(exportReport())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	device, err := f.GetCellValue("summary", "B4")
	if err != nil || device != "pump-17" {
		t.Fatalf("unexpected device cell %q (%v)", device, err)
	}
	alert, _ := f.GetCellValue("summary", "B9")
	if alert != "TRIGGERED" {
		t.Fatalf("unexpected alert cell %q", alert)
	}
	step, _ := f.GetCellValue("plan", "B3")
	if step != "Clear cooling passages" {
		t.Fatalf("unexpected plan cell %q", step)
	}
	doc, _ := f.GetCellValue("evidence", "A2")
	if doc != "kb-1" {
		t.Fatalf("unexpected evidence cell %q", doc)
	}
}
