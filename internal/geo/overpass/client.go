// Package overpass provides a client for an Overpass-style geographic
// feature query service.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/latamaq/latamaq/internal/geo"
	"github.com/latamaq/latamaq/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the public Overpass API interpreter endpoint.
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"

	// ProviderName identifies this provider.
	ProviderName = "overpass"
)

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// BaseURL is the interpreter endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 25s; Overpass
	// queries are slow).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries populated places from an Overpass interpreter.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 25 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:    ProviderName,
			Timeout: timeout,
		})
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// API response types (from the Overpass API).

type interpreterResponse struct {
	Elements []element `json:"elements"`
}

type element struct {
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// PlacesWithPopulation queries city/town nodes carrying a population
// tag inside the bounding box.
func (c *Client) PlacesWithPopulation(ctx context.Context, box geo.Bbox) ([]geo.Place, error) {
	query := fmt.Sprintf(
		`[out:json];node["place"~"city|town"]["population"](%f,%f,%f,%f);out;`,
		box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)

	u := c.baseURL + "?data=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from interpreter", resp.StatusCode)
	}

	var result interpreterResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode interpreter response: %w", err)
	}

	places := make([]geo.Place, 0, len(result.Elements))
	for _, e := range result.Elements {
		places = append(places, geo.Place{
			Name:       strings.TrimSpace(e.Tags["name"]),
			Lat:        e.Lat,
			Lon:        e.Lon,
			Population: e.Tags["population"],
		})
	}

	return places, nil
}
