// Package nominatim provides a client for a Nominatim-style place
// search service.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/latamaq/latamaq/internal/geo"
	"github.com/latamaq/latamaq/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the public Nominatim search endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// ProviderName identifies this provider.
	ProviderName = "nominatim"

	// resultLimit caps how many features one search returns.
	resultLimit = 20

	// userAgent identifies the collector; the public service rejects
	// anonymous clients.
	userAgent = "latamaq-collector/1.0"
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client searches place features from a Nominatim endpoint.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:    ProviderName,
			Timeout: timeout,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// API response types (from the Nominatim API).

type searchHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// SearchIndustrial queries features matching "industrial" inside a
// viewbox around the point. The viewbox spans radiusKm/100 degrees per
// side; the service treats it as a bias, not a filter, so hits outside
// the box come back too.
func (c *Client) SearchIndustrial(ctx context.Context, lat, lon, radiusKm float64) ([]geo.SearchResult, error) {
	delta := radiusKm / 100
	u := fmt.Sprintf("%s/search?q=industrial&format=json&limit=%d&viewbox=%f,%f,%f,%f",
		c.baseURL, resultLimit,
		lon-delta, lat-delta, lon+delta, lat+delta)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search industrial: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from search endpoint", resp.StatusCode)
	}

	var hits []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]geo.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, geo.SearchResult{Lat: h.Lat, Lon: h.Lon})
	}

	return results, nil
}
