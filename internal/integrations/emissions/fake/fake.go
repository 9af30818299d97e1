package fake

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/ecofinds/greencore/internal/integrations/emissions"
	"github.com/ecofinds/greencore/internal/models"
)

// FakeClient is a deterministic catalog stand-in: every non-empty query
// matches one weight-type factor, and the estimate scales with the
// amount so demo numbers look plausible.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) SearchFactors(ctx context.Context, query string) ([]models.EmissionFactor, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	id := strings.ToLower(strings.ReplaceAll(q, " ", "-"))
	return []models.EmissionFactor{
		{
			ID:       id,
			Name:     q + " (generic)",
			Category: q,
			UnitType: models.UnitTypeWeight,
			Unit:     "kg",
			Source:   "fake",
			Region:   "GLOBAL",
		},
	}, nil
}

func (f *FakeClient) Estimate(ctx context.Context, factor models.EmissionFactor, amount float64, unit string) (emissions.EstimateResponse, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(factor.ID))
	// 5..20 kg CO2e per unit amount, stable per factor.
	perUnit := float64(5 + h.Sum32()%16)
	return emissions.EstimateResponse{
		CO2e:     perUnit * amount,
		CO2eUnit: "kg",
	}, nil
}
