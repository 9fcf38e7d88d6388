package application

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	maintenance "smart-maintenance/internal/maintenance/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

// BatchItem is the outcome for one input sample.
type BatchItem struct {
	Index    int                 `json:"index"`
	DeviceID string              `json:"device_id"`
	Report   *maintenance.Report `json:"report,omitempty"`
	Err      error               `json:"-"`
}

// RunBatch processes samples grouped by device. Devices run in parallel up to the
// batch limit; samples of one device run sequentially in input order. Per-sample
// failures are reported on the item; only cancellation aborts the batch.
func (o *Orchestrator) RunBatch(ctx context.Context, samples []telemetry.Sample, opts RunOptions) ([]BatchItem, error) {
	if o == nil {
		return nil, errors.New("orchestrator: nil orchestrator")
	}
	items := make([]BatchItem, len(samples))
	order := make([]string, 0)
	groups := make(map[string][]int)
	for i, sample := range samples {
		items[i] = BatchItem{Index: i, DeviceID: sample.DeviceID}
		if _, ok := groups[sample.DeviceID]; !ok {
			order = append(order, sample.DeviceID)
		}
		groups[sample.DeviceID] = append(groups[sample.DeviceID], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchLimit)
	for _, deviceID := range order {
		indexes := groups[deviceID]
		g.Go(func() error {
			for _, idx := range indexes {
				if err := gctx.Err(); err != nil {
					return err
				}
				report, err := o.RunWithOptions(gctx, samples[idx], opts)
				items[idx].Report = report
				items[idx].Err = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
