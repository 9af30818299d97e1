package shipglide

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_GetTracking_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/track/TRK123", r.URL.Path)
		require.Equal(t, "demo", r.URL.Query().Get("apiKey"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "trackingNumber": "TRK123",
  "status": "Out for delivery",
  "estimatedDelivery": "2025-06-02T09:00:00Z",
  "events": [
    {"status":"Picked up","description":"Parcel accepted","city":"Lyon","timestamp":"2025-06-01T08:00:00Z"},
    {"status":"Out for delivery","description":"With courier","location":"Paris Hub","timestamp":"2025-06-02T07:30:00Z"}
  ]
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo")
	info, err := c.GetTracking(context.Background(), "TRK123")
	require.NoError(t, err)
	require.Equal(t, "Out for delivery", info.Status)
	require.NotNil(t, info.EstimatedDelivery)
	require.Nil(t, info.ActualDelivery)
	require.Len(t, info.Events, 2)

	// city is the fallback when location is absent
	require.Equal(t, "Lyon", *info.Events[0].Location)
	require.Equal(t, "Paris Hub", *info.Events[1].Location)
	require.Equal(t, time.Date(2025, 6, 2, 7, 30, 0, 0, time.UTC), info.Events[1].Timestamp)
}

func TestClient_GetTracking_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetTracking(context.Background(), "TRK123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "shipglide http 502")
}

func TestClient_GetTracking_EmptyStatusRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trackingNumber":"TRK123","events":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetTracking(context.Background(), "TRK123")
	require.Error(t, err)
}

func TestClient_GetTracking_SkipsEventsWithoutTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"In transit","events":[{"status":"In transit","description":"no time"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	info, err := c.GetTracking(context.Background(), "TRK123")
	require.NoError(t, err)
	require.Empty(t, info.Events)
}
