package audit

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRepositoryLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	meta := []byte(`{"risk_score":0.6}`)
	mock.ExpectExec("INSERT INTO maintenance_audit_logs").
		WithArgs(sqlmock.AnyArg(), "tenant-a", "ops", "operator", ActionRun, "maintenance_report", "r-1", "pump-17",
			meta, DigestJSON(meta), "10.0.0.1", "curl", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(db)
	err = repo.Log(context.Background(), Entry{
		TenantID:     "tenant-a",
		Actor:        "ops",
		Role:         "operator",
		Action:       ActionRun,
		ResourceType: "maintenance_report",
		ResourceID:   "r-1",
		DeviceID:     "pump-17",
		Metadata:     meta,
		IP:           "10.0.0.1",
		UserAgent:    "curl",
		CreatedAt:    at,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewRepositoryNilDB(t *testing.T) {
	if NewRepository(nil) != nil {
		t.Fatal("expected nil repository")
	}
	var repo *Repository
	if err := repo.Log(context.Background(), Entry{}); err == nil {
		t.Fatal("expected nil db error")
	}
}

func TestNewIDAndDigest(t *testing.T) {
	if id := NewID(); !strings.HasPrefix(id, "audit-") || NewID() == id {
		t.Fatalf("unexpected id %q", id)
	}
	if DigestJSON(nil) != "" || len(DigestJSON([]byte("{}"))) != 64 {
		t.Fatal("unexpected digest")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if ip := ClientIP(req); ip != "192.0.2.1" {
		t.Fatalf("remote addr: got %q", ip)
	}
	req.Header.Set("X-Real-IP", "198.51.100.2")
	if ip := ClientIP(req); ip != "198.51.100.2" {
		t.Fatalf("real ip: got %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if ip := ClientIP(req); ip != "203.0.113.5" {
		t.Fatalf("forwarded: got %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "unknown, 203.0.113.9")
	if ip := ClientIP(req); ip != "203.0.113.9" {
		t.Fatalf("forwarded with junk hop: got %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "garbage")
	if ip := ClientIP(req); ip != "198.51.100.2" {
		t.Fatalf("junk forwarded should fall back to real ip: got %q", ip)
	}
}
