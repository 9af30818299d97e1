package estimator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ecofinds/greencore/internal/apperr"
	"github.com/ecofinds/greencore/internal/integrations/emissions"
	"github.com/ecofinds/greencore/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	// search results keyed by query; missing key means empty result
	results map[string][]models.EmissionFactor
	queries []string

	searchErr error

	estimateIn struct {
		factor models.EmissionFactor
		amount float64
		unit   string
	}
	estimateOut emissions.EstimateResponse
	estimateErr error
}

func (f *fakeCatalog) SearchFactors(ctx context.Context, query string) ([]models.EmissionFactor, error) {
	f.queries = append(f.queries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results[query], nil
}

func (f *fakeCatalog) Estimate(ctx context.Context, factor models.EmissionFactor, amount float64, unit string) (emissions.EstimateResponse, error) {
	f.estimateIn.factor = factor
	f.estimateIn.amount = amount
	f.estimateIn.unit = unit
	if f.estimateErr != nil {
		return emissions.EstimateResponse{}, f.estimateErr
	}
	return f.estimateOut, nil
}

type fakeCache struct {
	m map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}

func weightFactor(id string) models.EmissionFactor {
	return models.EmissionFactor{ID: id, Name: id, Category: "Electronics", UnitType: models.UnitTypeWeight, Unit: "kg"}
}

func moneyFactor(id string) models.EmissionFactor {
	return models.EmissionFactor{ID: id, Name: id, Category: "Electronics", UnitType: models.UnitTypeMoney, Unit: "usd"}
}

func TestEstimate_EndToEndExample(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics Laptop": {weightFactor("laptop-mfg")},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 120.0, CO2eUnit: "kg"},
	}
	s := New(cat, nil, 0, 0.9)

	res, err := s.Estimate(context.Background(), Input{
		Category: "Electronics", Name: "Laptop", Weight: "1.8", WeightUnit: "kg",
	})
	require.NoError(t, err)
	require.InDelta(t, 120.0, res.Footprint, 1e-9)
	require.InDelta(t, 108.0, res.Saved, 1e-9)
	require.Equal(t, "kg", res.Unit)
	require.Equal(t, "laptop-mfg", res.FactorName)

	require.Equal(t, []string{"Electronics Laptop"}, cat.queries)
	require.InDelta(t, 1.8, cat.estimateIn.amount, 1e-9)
	require.Equal(t, "kg", cat.estimateIn.unit)
}

func TestEstimate_FallbackQueryOrder(t *testing.T) {
	// (a) and (b) empty, (c) matches: (c)'s results must be used and (d)
	// must never be issued.
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics": {weightFactor("generic-electronics")},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 10, CO2eUnit: "kg"},
	}
	s := New(cat, nil, 0, 0.9)

	res, err := s.Estimate(context.Background(), Input{Category: "Electronics", Name: "Laptop", Weight: "1"})
	require.NoError(t, err)
	require.Equal(t, "generic-electronics", res.FactorName)
	require.Equal(t, []string{"Electronics Laptop", "Laptop", "Electronics"}, cat.queries)
}

func TestEstimate_FallbackToConsumerGoods(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Consumer Goods": {weightFactor("consumer-goods")},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 3, CO2eUnit: "kg"},
	}
	s := New(cat, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{Category: "Oddities", Name: "Thing", Weight: "2"})
	require.NoError(t, err)
	require.Equal(t, []string{"Oddities Thing", "Thing", "Oddities", "Consumer Goods"}, cat.queries)
}

func TestEstimate_NoFactorsAnywhere(t *testing.T) {
	cat := &fakeCatalog{results: map[string][]models.EmissionFactor{}}
	s := New(cat, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{Category: "Oddities", Weight: "2"})
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.ErrorContains(t, err, "no emission factors found")
}

func TestEstimate_WeightFactorPreferredOverMoney(t *testing.T) {
	// money listed first; weight must still win
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics Laptop": {moneyFactor("spend"), weightFactor("laptop-mfg")},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 50, CO2eUnit: "kg"},
	}
	s := New(cat, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{Category: "Electronics", Name: "Laptop", Weight: "1.5", Price: "300"})
	require.NoError(t, err)
	require.Equal(t, "laptop-mfg", cat.estimateIn.factor.ID)
	require.InDelta(t, 1.5, cat.estimateIn.amount, 1e-9)
}

func TestEstimate_FirstFactorWhenNoPreferredType(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics Laptop": {
				{ID: "num", UnitType: models.UnitTypeNumber},
				{ID: "energy", UnitType: models.UnitTypeEnergy},
			},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 5, CO2eUnit: "kg"},
	}
	s := New(cat, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{Category: "Electronics", Name: "Laptop", Weight: "1"})
	require.NoError(t, err)
	require.Equal(t, "num", cat.estimateIn.factor.ID)
}

func TestEstimate_MoneyFactorUsesPriceAndCurrency(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics Laptop": {moneyFactor("spend")},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 12.5, CO2eUnit: "kg"},
	}
	s := New(cat, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{
		Category: "Electronics", Name: "Laptop", Weight: "1.5", Price: "45", Currency: "EUR",
	})
	require.NoError(t, err)
	require.InDelta(t, 45.0, cat.estimateIn.amount, 1e-9)
	require.Equal(t, "EUR", cat.estimateIn.unit)
}

func TestEstimate_MoneyFactorInvalidPrice(t *testing.T) {
	for _, price := range []string{"0", "-5", "abc", ""} {
		cat := &fakeCatalog{
			results: map[string][]models.EmissionFactor{
				"Electronics Laptop": {moneyFactor("spend")},
			},
		}
		s := New(cat, nil, 0, 0.9)

		_, err := s.Estimate(context.Background(), Input{
			Category: "Electronics", Name: "Laptop", Weight: "1.5", Price: price,
		})
		require.Error(t, err, "price=%q", price)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err), "price=%q", price)
		require.ErrorContains(t, err, "valid price required")
		// must never fall back to the weight amount
		require.Zero(t, cat.estimateIn.amount)
	}
}

func TestEstimate_InvalidWeight(t *testing.T) {
	s := New(&fakeCatalog{}, nil, 0, 0.9)

	for _, weight := range []string{"", "0", "-1", "heavy"} {
		_, err := s.Estimate(context.Background(), Input{Category: "Electronics", Weight: weight})
		require.Error(t, err, "weight=%q", weight)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		require.ErrorContains(t, err, "valid weight required")
	}
}

func TestEstimate_MissingCategory(t *testing.T) {
	s := New(&fakeCatalog{}, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{Weight: "1"})
	require.Error(t, err)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestEstimate_SearchFailureIsCalculationError(t *testing.T) {
	cat := &fakeCatalog{searchErr: errors.New("connection refused")}
	s := New(cat, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{Category: "Electronics", Weight: "1"})
	require.Error(t, err)
	require.Equal(t, apperr.KindCalculation, apperr.KindOf(err))
}

func TestEstimate_EstimateFailureIsCalculationError(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics": {weightFactor("f")},
		},
		estimateErr: errors.New("upstream 500"),
	}
	s := New(cat, nil, 0, 0.9)

	_, err := s.Estimate(context.Background(), Input{Category: "Electronics", Weight: "1"})
	require.Error(t, err)
	require.Equal(t, apperr.KindCalculation, apperr.KindOf(err))
}

func TestEstimate_ConfigurableSavingsMultiplier(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics": {weightFactor("f")},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 100, CO2eUnit: "kg"},
	}
	s := New(cat, nil, 0, 0.75)

	res, err := s.Estimate(context.Background(), Input{Category: "Electronics", Weight: "1"})
	require.NoError(t, err)
	require.InDelta(t, 75.0, res.Saved, 1e-9)
}

func TestEstimate_CacheHitSkipsCatalog(t *testing.T) {
	c := &fakeCache{m: map[string][]byte{}}
	want := models.EstimationResult{Footprint: 42, Saved: 37.8, Unit: "kg", FactorName: "cached"}
	b, _ := json.Marshal(want)
	c.m[cacheKey("Laptop", "electronics", "1.8", "kg", "", "usd")] = b

	cat := &fakeCatalog{}
	s := New(cat, c, 10*time.Minute, 0.9)

	res, err := s.Estimate(context.Background(), Input{Category: "Electronics", Name: "Laptop", Weight: "1.8"})
	require.NoError(t, err)
	require.Equal(t, "cached", res.FactorName)
	require.Empty(t, cat.queries) // catalog untouched
}

func TestEstimate_ResultStoredInCache(t *testing.T) {
	c := &fakeCache{m: map[string][]byte{}}
	cat := &fakeCatalog{
		results: map[string][]models.EmissionFactor{
			"Electronics": {weightFactor("f")},
		},
		estimateOut: emissions.EstimateResponse{CO2e: 10, CO2eUnit: "kg"},
	}
	s := New(cat, c, 10*time.Minute, 0.9)

	_, err := s.Estimate(context.Background(), Input{Category: "Electronics", Weight: "1"})
	require.NoError(t, err)
	require.Len(t, c.m, 1)
}
