package messages

import "time"

// ShipmentUpdated is published by green-worker after each carrier check
// and consumed by green-api, which applies it through the same storage
// merge the on-demand reconciler uses.
type ShipmentUpdated struct {
	ShipmentID uint64    `json:"shipment_id"`
	CheckedAt  time.Time `json:"checked_at"`

	Status    string `json:"status,omitempty"`
	StatusRaw string `json:"status_raw,omitempty"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`

	Events []TrackingEvent `json:"events,omitempty"`

	Error *string `json:"error,omitempty"`
}

type TrackingEvent struct {
	Status      string    `json:"status"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	EventTime   time.Time `json:"event_time"`
}
