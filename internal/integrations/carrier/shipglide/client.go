package shipglide

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ecofinds/greencore/internal/integrations/carrier"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type respEvent struct {
	Status      string     `json:"status"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	City        string     `json:"city"`
	Timestamp   *time.Time `json:"timestamp"`
}

type respBody struct {
	TrackingNumber    string      `json:"trackingNumber"`
	Status            string      `json:"status"`
	EstimatedDelivery *time.Time  `json:"estimatedDelivery"`
	ActualDelivery    *time.Time  `json:"actualDelivery"`
	Events            []respEvent `json:"events"`
}

func (c *Client) GetTracking(ctx context.Context, trackingNumber string) (carrier.TrackingInfo, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/track/%s", url.PathEscape(trackingNumber))
	if c.apiKey != "" {
		q := u.Query()
		q.Set("apiKey", c.apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return carrier.TrackingInfo{}, fmt.Errorf("shipglide http %d", resp.StatusCode)
	}

	var r respBody
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "decode")
	}
	// The carrier has been seen returning bodies with no status at all;
	// treat them as unusable rather than pretending we got an update.
	if r.Status == "" {
		return carrier.TrackingInfo{}, errors.New("shipglide response has no status")
	}

	info := carrier.TrackingInfo{
		Status:            r.Status,
		EstimatedDelivery: r.EstimatedDelivery,
		ActualDelivery:    r.ActualDelivery,
	}
	for _, e := range r.Events {
		if e.Timestamp == nil {
			continue
		}
		loc := e.Location
		if loc == "" {
			loc = e.City
		}
		info.Events = append(info.Events, carrier.TrackingEventInfo{
			Status:      e.Status,
			Description: strPtr(e.Description),
			Location:    strPtr(loc),
			Timestamp:   e.Timestamp.UTC(),
		})
	}
	return info, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
