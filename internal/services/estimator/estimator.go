// Package estimator computes a best-effort carbon footprint for a
// product description against an external emission-factor catalog.
package estimator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ecofinds/greencore/internal/apperr"
	"github.com/ecofinds/greencore/internal/cache"
	"github.com/ecofinds/greencore/internal/integrations/emissions"
	"github.com/ecofinds/greencore/internal/models"
)

const (
	// fallbackQuery is the last-resort catalog query when neither the
	// product name nor its category matches anything.
	fallbackQuery = "Consumer Goods"

	defaultWeightUnit = "kg"
	defaultCurrency   = "USD"

	// DefaultSavingsMultiplier is the assumed fraction of a new item's
	// footprint avoided by buying secondhand instead. Product policy.
	DefaultSavingsMultiplier = 0.9
)

// Input carries the raw form values. Weight and Price stay strings so
// that "not a number" is a validation outcome, not a decode failure.
type Input struct {
	Name       string
	Category   string
	Weight     string
	Price      string
	WeightUnit string
	Currency   string
}

type Service struct {
	catalog  emissions.Client
	cache    cache.BytesCache
	cacheTTL time.Duration
	savings  float64
}

func New(catalog emissions.Client, c cache.BytesCache, cacheTTL time.Duration, savingsMultiplier float64) *Service {
	if savingsMultiplier <= 0 {
		savingsMultiplier = DefaultSavingsMultiplier
	}
	return &Service{catalog: catalog, cache: c, cacheTTL: cacheTTL, savings: savingsMultiplier}
}

func (s *Service) Estimate(ctx context.Context, in Input) (*models.EstimationResult, error) {
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, apperr.Validation("valid category required")
	}
	weight, weightOK := parsePositive(in.Weight)
	if !weightOK {
		return nil, apperr.Validation("valid weight required")
	}

	weightUnit := in.WeightUnit
	if weightUnit == "" {
		weightUnit = defaultWeightUnit
	}
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	key := cacheKey(in.Name, category, in.Weight, weightUnit, in.Price, currency)
	if s.cache != nil && s.cacheTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var res models.EstimationResult
			if json.Unmarshal(b, &res) == nil {
				return &res, nil
			}
		}
	}

	factors, err := s.searchWithFallback(ctx, in.Name, category)
	if err != nil {
		return nil, err
	}
	if len(factors) == 0 {
		return nil, apperr.NotFound("no emission factors found")
	}

	factor := selectFactor(factors)

	var amount float64
	var unit string
	if factor.UnitType == models.UnitTypeMoney {
		price, ok := parsePositive(in.Price)
		if !ok {
			return nil, apperr.Validation("valid price required")
		}
		amount, unit = price, currency
	} else {
		// Number/Energy and anything unrecognized is treated as
		// weight-based; the catalog's weight factors dominate anyway.
		amount, unit = weight, weightUnit
	}

	est, err := s.catalog.Estimate(ctx, factor, amount, unit)
	if err != nil {
		return nil, apperr.Calculation("emission estimate failed", err)
	}

	res := &models.EstimationResult{
		Footprint:      est.CO2e,
		Saved:          est.CO2e * s.savings,
		Unit:           est.CO2eUnit,
		FactorName:     factor.Name,
		FactorCategory: factor.Category,
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if b, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, key, b, s.cacheTTL)
		}
	}

	return res, nil
}

// searchWithFallback issues up to four queries in strict order, most
// specific first, and stops at the first non-empty result set.
func (s *Service) searchWithFallback(ctx context.Context, name, category string) ([]models.EmissionFactor, error) {
	candidates := []string{
		strings.TrimSpace(category + " " + name),
		strings.TrimSpace(name),
		category,
		fallbackQuery,
	}

	var prev string
	for _, q := range candidates {
		if q == "" || q == prev {
			continue
		}
		prev = q

		factors, err := s.catalog.SearchFactors(ctx, q)
		if err != nil {
			return nil, apperr.Calculation("emission factor search failed", err)
		}
		if len(factors) > 0 {
			return factors, nil
		}
	}
	return nil, nil
}

// selectFactor prefers weight-type factors, then money-type, then
// whatever the catalog listed first. No further sorting.
func selectFactor(factors []models.EmissionFactor) models.EmissionFactor {
	for _, f := range factors {
		if f.UnitType == models.UnitTypeWeight {
			return f
		}
	}
	for _, f := range factors {
		if f.UnitType == models.UnitTypeMoney {
			return f
		}
	}
	return factors[0]
}

func parsePositive(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func cacheKey(name, category, weight, weightUnit, price, currency string) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return fmt.Sprintf("estimate:%s|%s|%s|%s|%s|%s",
		norm(category), norm(name), norm(weight), norm(weightUnit), norm(price), norm(currency))
}
