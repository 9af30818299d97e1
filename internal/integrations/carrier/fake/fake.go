package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/ecofinds/greencore/internal/integrations/carrier"
)

// FakeClient is a deterministic stand-in for the carrier API so the
// stack runs end to end without the emulator. Status is derived from
// the tracking number: a fifth of shipments come back delivered.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) GetTracking(ctx context.Context, trackingNumber string) (carrier.TrackingInfo, error) {
	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	status := "In transit"
	var actual *time.Time
	if v%5 == 0 {
		status = "Delivered"
		actual = &now
	}

	desc := "fake carrier update"
	loc := "Depot 1"
	return carrier.TrackingInfo{
		Status:         status,
		ActualDelivery: actual,
		Events: []carrier.TrackingEventInfo{
			{Status: status, Description: &desc, Location: &loc, Timestamp: now.Truncate(time.Minute)},
		},
	}, nil
}
