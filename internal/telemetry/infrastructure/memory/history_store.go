package memory

import (
	"context"
	"errors"
	"sync"

	telemetry "smart-maintenance/internal/telemetry/domain"
)

// HistoryStore is an in-memory bounded history keyed by device id.
type HistoryStore struct {
	mu   sync.RWMutex
	data map[string][]telemetry.Sample
}

// NewHistoryStore constructs a store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{data: make(map[string][]telemetry.Sample)}
}

// Recent returns up to limit samples for the device, oldest first.
func (s *HistoryStore) Recent(ctx context.Context, deviceID string, limit int) ([]telemetry.Sample, error) {
	_ = ctx
	if s == nil {
		return nil, errors.New("history store: nil store")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.data[deviceID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]telemetry.Sample, len(history))
	copy(out, history)
	return out, nil
}

// Append records a sample, evicting the oldest entries beyond window.
func (s *HistoryStore) Append(ctx context.Context, sample telemetry.Sample, window int) error {
	_ = ctx
	if s == nil {
		return errors.New("history store: nil store")
	}
	if sample.DeviceID == "" {
		return telemetry.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.data[sample.DeviceID], sample)
	if window > 0 && len(history) > window {
		trimmed := make([]telemetry.Sample, window)
		copy(trimmed, history[len(history)-window:])
		history = trimmed
	}
	s.data[sample.DeviceID] = history
	return nil
}

// Devices returns the number of devices seen so far.
func (s *HistoryStore) Devices() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
