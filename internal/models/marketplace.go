package models

import "time"

// Normalized shipment statuses. PENDING is the pre-shipment state; the
// rest are driven entirely by the carrier's reported status.
const (
	ShipmentStatusPending        = "PENDING"
	ShipmentStatusPickedUp       = "PICKED_UP"
	ShipmentStatusInTransit      = "IN_TRANSIT"
	ShipmentStatusOutForDelivery = "OUT_FOR_DELIVERY"
	ShipmentStatusDelivered      = "DELIVERED"
	ShipmentStatusFailedDelivery = "FAILED_DELIVERY"
	ShipmentStatusReturned       = "RETURNED"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// carrierStatusMap translates the carrier's free-text status vocabulary
// into the internal enumeration. Exact match, as observed on the wire.
var carrierStatusMap = map[string]string{
	"In transit":       ShipmentStatusInTransit,
	"Out for delivery": ShipmentStatusOutForDelivery,
	"Delivered":        ShipmentStatusDelivered,
	"Picked up":        ShipmentStatusPickedUp,
	"Delivery failed":  ShipmentStatusFailedDelivery,
	"Returned":         ShipmentStatusReturned,
}

// MapCarrierStatus returns the internal status for a carrier status
// string. ok is false for unrecognized strings; callers must keep the
// shipment's previous status in that case.
func MapCarrierStatus(raw string) (string, bool) {
	st, ok := carrierStatusMap[raw]
	return st, ok
}

type Shipment struct {
	ID             uint64
	OrderID        uint64
	TrackingNumber string
	Status         string
	StatusRaw      string

	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time

	LastCheckedAt  *time.Time
	NextCheckAt    time.Time
	CheckFailCount int32
	LastError      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TrackingEvent struct {
	ID          uint64
	ShipmentID  uint64
	Status      string
	Description *string
	Location    *string
	EventTime   time.Time
	CreatedAt   time.Time
}

// Order is owned by checkout/payment logic; this core only flips its
// status to DELIVERED when the shipment reaches a terminal delivered state.
type Order struct {
	ID        uint64
	BuyerID   uint64
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID        uint64
	Email     string
	Role      string
	APIToken  string
	CreatedAt time.Time
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID uint64
	Role   string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
