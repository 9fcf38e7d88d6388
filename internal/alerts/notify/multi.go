package notify

import (
	"context"
	"errors"

	alerts "smart-maintenance/internal/alerts/domain"
)

// MultiTransport sends alerts through multiple transports.
type MultiTransport struct {
	transports []alerts.Transport
}

// NewMultiTransport constructs a MultiTransport.
func NewMultiTransport(transports ...alerts.Transport) *MultiTransport {
	return &MultiTransport{transports: transports}
}

// Send forwards the notification to all transports and joins their errors.
func (m *MultiTransport) Send(ctx context.Context, n alerts.Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, transport := range m.transports {
		if transport == nil {
			continue
		}
		if err := transport.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
