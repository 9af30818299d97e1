package climatiqhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecofinds/greencore/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_SearchFactors_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Electronics Laptop", r.URL.Query().Get("query"))
		require.Equal(t, "^0", r.URL.Query().Get("data_version"))
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
  "results": [
    {"id":"laptop-mfg","name":"Laptop manufacture","category":"Electronics","unit_type":"Weight","unit":"kg"},
    {"id":"","name":"broken entry"},
    {"id":"electronics-spend","name":"Electronics spend","category":"Electronics","unit_type":"Money","unit":"usd"}
  ]
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", "^0")
	got, err := c.SearchFactors(context.Background(), "Electronics Laptop")
	require.NoError(t, err)
	require.Len(t, got, 2) // id-less entry dropped
	require.Equal(t, "laptop-mfg", got[0].ID)
	require.Equal(t, models.UnitTypeWeight, got[0].UnitType)
}

func TestClient_SearchFactors_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad", "^0")
	_, err := c.SearchFactors(context.Background(), "anything")
	require.Error(t, err)
	require.Contains(t, err.Error(), "catalog search http 401")
}

func TestClient_Estimate_WeightParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/estimate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		factor := body["emission_factor"].(map[string]any)
		require.Equal(t, "laptop-mfg", factor["id"])
		params := body["parameters"].(map[string]any)
		require.InDelta(t, 1.8, params["weight"].(float64), 1e-9)
		require.Equal(t, "kg", params["weight_unit"])

		_, _ = w.Write([]byte(`{"co2e":120.0,"co2e_unit":"kg"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", "^0")
	got, err := c.Estimate(context.Background(), models.EmissionFactor{ID: "laptop-mfg", UnitType: models.UnitTypeWeight}, 1.8, "kg")
	require.NoError(t, err)
	require.InDelta(t, 120.0, got.CO2e, 1e-9)
	require.Equal(t, "kg", got.CO2eUnit)
}

func TestClient_Estimate_MoneyParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		params := body["parameters"].(map[string]any)
		require.InDelta(t, 45.0, params["money"].(float64), 1e-9)
		require.Equal(t, "USD", params["money_unit"])

		_, _ = w.Write([]byte(`{"co2e":12.5,"co2e_unit":"kg"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", "^0")
	got, err := c.Estimate(context.Background(), models.EmissionFactor{ID: "spend", UnitType: models.UnitTypeMoney}, 45.0, "USD")
	require.NoError(t, err)
	require.InDelta(t, 12.5, got.CO2e, 1e-9)
}

func TestClient_Estimate_EmptyResponseRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", "^0")
	_, err := c.Estimate(context.Background(), models.EmissionFactor{ID: "x", UnitType: models.UnitTypeWeight}, 1, "kg")
	require.Error(t, err)
}
