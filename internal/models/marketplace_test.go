package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapCarrierStatus(t *testing.T) {
	cases := map[string]string{
		"In transit":       ShipmentStatusInTransit,
		"Out for delivery": ShipmentStatusOutForDelivery,
		"Delivered":        ShipmentStatusDelivered,
		"Picked up":        ShipmentStatusPickedUp,
		"Delivery failed":  ShipmentStatusFailedDelivery,
		"Returned":         ShipmentStatusReturned,
	}
	for raw, want := range cases {
		got, ok := MapCarrierStatus(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got)
	}
}

func TestMapCarrierStatus_ExactMatchOnly(t *testing.T) {
	for _, raw := range []string{"", "in transit", "IN TRANSIT", "Customs Hold", "delivered"} {
		_, ok := MapCarrierStatus(raw)
		require.False(t, ok, raw)
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	require.True(t, (&Identity{UserID: 1, Role: RoleAdmin}).IsAdmin())
	require.False(t, (&Identity{UserID: 1, Role: RoleBuyer}).IsAdmin())
	var nilIdent *Identity
	require.False(t, nilIdent.IsAdmin())
}
