package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	maintenance "smart-maintenance/internal/maintenance/domain"
)

// ReportStore keeps reports in memory.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]maintenance.Report
}

// NewReportStore constructs a store.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]maintenance.Report)}
}

// Save stores a copy of the report.
func (s *ReportStore) Save(ctx context.Context, report *maintenance.Report) error {
	_ = ctx
	if s == nil {
		return errors.New("report store: nil store")
	}
	if report == nil || report.ID == "" {
		return errors.New("report store: report id required")
	}
	s.mu.Lock()
	s.reports[report.ID] = *report
	s.mu.Unlock()
	return nil
}

// Get returns a report by id.
func (s *ReportStore) Get(ctx context.Context, id string) (*maintenance.Report, error) {
	_ = ctx
	if s == nil {
		return nil, errors.New("report store: nil store")
	}
	s.mu.RLock()
	report, ok := s.reports[id]
	s.mu.RUnlock()
	if !ok {
		return nil, maintenance.ErrNotFound
	}
	return &report, nil
}

// List returns reports newest first.
func (s *ReportStore) List(ctx context.Context, filter maintenance.ReportFilter) ([]maintenance.Report, error) {
	_ = ctx
	if s == nil {
		return nil, errors.New("report store: nil store")
	}
	s.mu.RLock()
	out := make([]maintenance.Report, 0, len(s.reports))
	for _, report := range s.reports {
		if filter.TenantID != "" && report.TenantID != filter.TenantID {
			continue
		}
		if filter.DeviceID != "" && report.DeviceID != filter.DeviceID {
			continue
		}
		if !filter.From.IsZero() && report.GeneratedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !report.GeneratedAt.Before(filter.To) {
			continue
		}
		out = append(out, report)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
