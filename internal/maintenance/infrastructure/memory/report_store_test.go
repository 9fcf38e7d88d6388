package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	maintenance "smart-maintenance/internal/maintenance/domain"
)

func TestReportStoreSaveGetList(t *testing.T) {
	store := NewReportStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	reports := []maintenance.Report{
		{ID: "r-1", TenantID: "t-1", DeviceID: "pump-1", GeneratedAt: base},
		{ID: "r-2", TenantID: "t-1", DeviceID: "pump-2", GeneratedAt: base.Add(time.Hour)},
		{ID: "r-3", TenantID: "t-2", DeviceID: "pump-1", GeneratedAt: base.Add(2 * time.Hour)},
	}
	for i := range reports {
		if err := store.Save(ctx, &reports[i]); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := store.Get(ctx, "r-2")
	if err != nil || got.DeviceID != "pump-2" {
		t.Fatalf("unexpected get result %v %v", got, err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, maintenance.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := store.List(ctx, maintenance.ReportFilter{TenantID: "t-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "r-2" {
		t.Fatalf("expected newest first for tenant t-1, got %+v", list)
	}
	list, _ = store.List(ctx, maintenance.ReportFilter{DeviceID: "pump-1", Limit: 1})
	if len(list) != 1 || list[0].ID != "r-3" {
		t.Fatalf("unexpected device listing %+v", list)
	}
	if err := store.Save(ctx, &maintenance.Report{}); err == nil {
		t.Fatal("expected id required error")
	}
}
