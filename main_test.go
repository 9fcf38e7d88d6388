package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smart-maintenance/internal/auth"
	"smart-maintenance/internal/config"
	maintenanceapp "smart-maintenance/internal/maintenance/application"
	maintenance "smart-maintenance/internal/maintenance/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:         ":0",
		BatchConcurrency: 2,
		LogFormat:        "json",
		LogLevel:         "error",
		AlertTimeout:     time.Second,
	}
}

func newTestApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	a, err := buildApp(context.Background(), cfg, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestServeRunAndListReports(t *testing.T) {
	cfg := testConfig()
	cfg.TenantID = "tenant-local"
	a := newTestApp(t, cfg)
	handler, err := newHTTPHandler(a)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	body := `{"device_id":"pump-17","temperature":95,"pressure":40,"cpu_load":30}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/runs", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("run: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var report maintenance.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Assessment.RiskScore != 0.6 || len(report.Assessment.FailureModes) != 1 || report.Assessment.FailureModes[0] != "overheat" {
		t.Fatalf("unexpected assessment %+v", report.Assessment)
	}
	if report.Alert.Triggered {
		t.Fatal("default threshold 0.7 should not trigger at 0.6")
	}
	if report.TenantID != "tenant-local" || len(report.Plan.Steps) == 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/maintenance/reports?device_id=pump-17", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list []maintenance.Report
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != report.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/pump-17/history", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"temperature":95`) {
		t.Fatalf("history: unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestServeRequiresTokenWhenAuthEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.AuthEnabled = true
	cfg.JWTSecret = "secret"
	a := newTestApp(t, cfg)
	handler, err := newHTTPHandler(a)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/maintenance/reports", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	token, err := auth.IssueJWT([]byte("secret"), "tenant-a", auth.RoleViewer, "viewer", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/maintenance/reports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer list: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/runs", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer run: expected 403, got %d", rec.Code)
	}
}

func TestRunSamples(t *testing.T) {
	a := newTestApp(t, testConfig())
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	samples := []telemetry.Sample{
		telemetry.NewSample("pump-17", at, 95, 70, 30),
		{DeviceID: "pump-18", Timestamp: at, Pressure: telemetry.Float(40), CPULoad: telemetry.Float(30)},
	}
	var out bytes.Buffer
	err := runSamples(context.Background(), a.orchestrator, samples, maintenanceapp.RunOptions{}, &out)
	if err == nil {
		t.Fatal("expected failure count error")
	}

	decoder := json.NewDecoder(&out)
	var first, second runOutput
	if err := decoder.Decode(&first); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := decoder.Decode(&second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if first.Report == nil || first.Report.Assessment.RiskScore != 0.9 || !first.Report.Alert.Triggered {
		t.Fatalf("unexpected first output %+v", first)
	}
	if second.Report != nil || second.Error == "" {
		t.Fatalf("unexpected second output %+v", second)
	}
}

func TestReadCSVLatestPerDevice(t *testing.T) {
	data := "Timestamp,DeviceID,Temperature,Pressure,CPU_Usage\n" +
		"2026-03-01T08:00:00Z,pump-17,80,40,30\n" +
		"2026-03-01T08:05:00Z,pump-17,95,40,30\n" +
		"2026-03-01T08:00:00Z,fan-2,50,20,10\n"
	samples, err := readCSV(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	latest := telemetry.LatestPerDevice(samples)
	if len(latest) != 2 || latest[0].DeviceID != "fan-2" || latest[1].DeviceID != "pump-17" {
		t.Fatalf("unexpected latest %+v", latest)
	}
	if temp, _ := latest[1].Value(telemetry.SignalTemperature); temp != 95 {
		t.Fatalf("expected latest pump-17 temperature 95, got %v", temp)
	}
}

func TestRunSamplesScoresBlankCSVCell(t *testing.T) {
	a := newTestApp(t, testConfig())
	data := "Timestamp,DeviceID,Temperature,Pressure,CPU_Usage\n" +
		"2026-03-01T08:00:00Z,pump-1,,70,30\n"
	samples, err := readCSV(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	var out bytes.Buffer
	if err := runSamples(context.Background(), a.orchestrator, samples, maintenanceapp.RunOptions{}, &out); err != nil {
		t.Fatalf("run samples: %v\n%s", err, out.String())
	}
	var result runOutput
	if err := json.NewDecoder(&out).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Report == nil {
		t.Fatalf("expected report, got %+v", result)
	}
	modes := result.Report.Assessment.FailureModes
	if len(modes) != 1 || modes[0] != "overpressure" {
		t.Fatalf("expected only overpressure, got %v", modes)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}
