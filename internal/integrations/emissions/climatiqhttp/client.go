// Package climatiqhttp talks to a climatiq-style emission-factor
// catalog: bearer-token GET /search plus POST /estimate.
package climatiqhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ecofinds/greencore/internal/integrations/emissions"
	"github.com/ecofinds/greencore/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL     string
	apiKey      string
	dataVersion string
	httpc       *http.Client
}

func New(baseURL, apiKey, dataVersion string) *Client {
	if baseURL == "" {
		baseURL = "https://api.climatiq.io/data/v1"
	}
	if dataVersion == "" {
		dataVersion = "^0"
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		dataVersion: dataVersion,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type searchResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	UnitType string `json:"unit_type"`
	Unit     string `json:"unit"`
	Source   string `json:"source"`
	Region   string `json:"region"`
}

type searchResp struct {
	Results []searchResult `json:"results"`
}

func (c *Client) SearchFactors(ctx context.Context, query string) ([]models.EmissionFactor, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path += "/search"

	q := u.Query()
	q.Set("query", query)
	q.Set("data_version", c.dataVersion)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("catalog search http %d", resp.StatusCode)
	}

	var r searchResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode search response")
	}

	out := make([]models.EmissionFactor, 0, len(r.Results))
	for _, f := range r.Results {
		// Entries without an id are unusable for the estimate call.
		if f.ID == "" {
			continue
		}
		out = append(out, models.EmissionFactor{
			ID:       f.ID,
			Name:     f.Name,
			Category: f.Category,
			UnitType: f.UnitType,
			Unit:     f.Unit,
			Source:   f.Source,
			Region:   f.Region,
		})
	}
	return out, nil
}

type estimateReq struct {
	EmissionFactor estimateFactorRef  `json:"emission_factor"`
	Parameters     map[string]any     `json:"parameters"`
}

type estimateFactorRef struct {
	ID          string `json:"id"`
	DataVersion string `json:"data_version,omitempty"`
}

type estimateResp struct {
	CO2e     float64 `json:"co2e"`
	CO2eUnit string  `json:"co2e_unit"`
}

func (c *Client) Estimate(ctx context.Context, factor models.EmissionFactor, amount float64, unit string) (emissions.EstimateResponse, error) {
	params := map[string]any{}
	if factor.UnitType == models.UnitTypeMoney {
		params["money"] = amount
		params["money_unit"] = unit
	} else {
		params["weight"] = amount
		params["weight_unit"] = unit
	}

	body, err := json.Marshal(estimateReq{
		EmissionFactor: estimateFactorRef{ID: factor.ID, DataVersion: c.dataVersion},
		Parameters:     params,
	})
	if err != nil {
		return emissions.EstimateResponse{}, errors.Wrap(err, "marshal estimate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/estimate", bytes.NewReader(body))
	if err != nil {
		return emissions.EstimateResponse{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return emissions.EstimateResponse{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return emissions.EstimateResponse{}, fmt.Errorf("catalog estimate http %d", resp.StatusCode)
	}

	var r estimateResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return emissions.EstimateResponse{}, errors.Wrap(err, "decode estimate response")
	}
	if r.CO2e <= 0 || r.CO2eUnit == "" {
		return emissions.EstimateResponse{}, errors.New("catalog estimate response is empty")
	}

	return emissions.EstimateResponse{CO2e: r.CO2e, CO2eUnit: r.CO2eUnit}, nil
}
