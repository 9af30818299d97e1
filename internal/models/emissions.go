package models

// Emission factor unit types as the catalog reports them.
const (
	UnitTypeWeight = "Weight"
	UnitTypeMoney  = "Money"
	UnitTypeNumber = "Number"
	UnitTypeEnergy = "Energy"
)

// EmissionFactor is a coefficient from the external catalog relating a
// physical or monetary quantity to CO2e output. Transient, never persisted.
type EmissionFactor struct {
	ID       string
	Name     string
	Category string
	UnitType string
	Unit     string
	Source   string
	Region   string
}

// EstimationResult is what the estimator hands back to callers: the
// footprint, the assumed avoided emissions, and factor attribution.
type EstimationResult struct {
	Footprint      float64 `json:"footprint"`
	Saved          float64 `json:"saved"`
	Unit           string  `json:"unit"`
	FactorName     string  `json:"factor_name"`
	FactorCategory string  `json:"factor_category"`
}
