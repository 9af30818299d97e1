package emissions

import (
	"context"

	"github.com/ecofinds/greencore/internal/models"
)

// EstimateResponse is the catalog's computed CO2e for one factor and
// one amount.
type EstimateResponse struct {
	CO2e     float64
	CO2eUnit string
}

// Client is the emission-factor catalog capability: search the factor
// list, then ask for an estimate against one selected factor.
type Client interface {
	SearchFactors(ctx context.Context, query string) ([]models.EmissionFactor, error)
	Estimate(ctx context.Context, factor models.EmissionFactor, amount float64, unit string) (EstimateResponse, error)
}
