package carrier

import (
	"context"
	"time"
)

// TrackingEventInfo is one carrier-side scan/checkpoint.
type TrackingEventInfo struct {
	Status      string
	Description *string
	Location    *string
	Timestamp   time.Time
}

// TrackingInfo is the carrier's current view of a shipment. Status is
// the carrier's free-text vocabulary; normalization happens in the
// reconciler via models.MapCarrierStatus.
type TrackingInfo struct {
	Status            string
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	Events            []TrackingEventInfo
}

type Client interface {
	GetTracking(ctx context.Context, trackingNumber string) (TrackingInfo, error)
}
