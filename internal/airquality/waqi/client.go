// Package waqi provides a client for the World Air Quality Index API.
package waqi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/latamaq/latamaq/internal/airquality"
	"github.com/latamaq/latamaq/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the WAQI API.
	DefaultBaseURL = "https://api.waqi.info"

	// ProviderName identifies this provider.
	ProviderName = "waqi"

	// statusOK is the success sentinel in WAQI response envelopes.
	statusOK = "ok"
)

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// Token is the WAQI access token (required).
	Token string

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

// Client is a WAQI API client.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new WAQI client.
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
		token:      cfg.Token,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// API response types (from the WAQI API).

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type searchEntry struct {
	Station struct {
		Name string `json:"name"`
	} `json:"station"`
}

type feedData struct {
	AQI  looseNumber `json:"aqi"`
	IAQI map[string]struct {
		V *float64 `json:"v"`
	} `json:"iaqi"`
	City struct {
		Name string    `json:"name"`
		Geo  []float64 `json:"geo"`
	} `json:"city"`
}

// looseNumber tolerates the API reporting a number, a numeric string,
// or "-" for an index it does not have. Anything unparseable decodes to
// a missing value rather than an error.
type looseNumber struct {
	value *float64
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	n.value = nil

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.value = &f
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			n.value = &parsed
		}
	}
	return nil
}

// Search queries stations matching a free-text keyword, typically a
// country name. Stations without a name are skipped.
func (c *Client) Search(ctx context.Context, keyword string) ([]airquality.Station, error) {
	u := fmt.Sprintf("%s/search/?token=%s&keyword=%s",
		c.baseURL, url.QueryEscape(c.token), url.QueryEscape(keyword))

	var env envelope
	if err := c.get(ctx, u, &env); err != nil {
		return nil, err
	}

	if env.Status != statusOK {
		return nil, fmt.Errorf("search %q: %w", keyword, airquality.ErrFeedUnavailable)
	}

	var entries []searchEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return nil, fmt.Errorf("decode search data: %w", err)
	}

	stations := make([]airquality.Station, 0, len(entries))
	for _, e := range entries {
		if e.Station.Name == "" {
			continue
		}
		stations = append(stations, airquality.Station{Name: e.Station.Name})
	}

	return stations, nil
}

// CityFeed fetches the current readings for a named city.
func (c *Client) CityFeed(ctx context.Context, city string) (*airquality.Feed, error) {
	u := fmt.Sprintf("%s/feed/%s/?token=%s",
		c.baseURL, url.PathEscape(city), url.QueryEscape(c.token))

	var env envelope
	if err := c.get(ctx, u, &env); err != nil {
		return nil, err
	}

	if env.Status != statusOK {
		return nil, fmt.Errorf("feed %q: %w", city, airquality.ErrFeedUnavailable)
	}

	var data feedData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode feed data: %w", err)
	}

	return c.toFeed(&data), nil
}

// get executes a GET request and decodes the response envelope.
func (c *Client) get(ctx context.Context, url string, out *envelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// toFeed converts API feed data to the domain Feed.
func (c *Client) toFeed(d *feedData) *airquality.Feed {
	feed := &airquality.Feed{
		AQI:         d.AQI.value,
		Temperature: c.reading(d, "t"),
		Humidity:    c.reading(d, "h"),
		PM25:        c.reading(d, "pm25"),
		PM10:        c.reading(d, "pm10"),
		NO2:         c.reading(d, "no2"),
		SO2:         c.reading(d, "so2"),
		CO:          c.reading(d, "co"),
		StationName: d.City.Name,
	}

	// Geo is [lat, lon]; anything shorter leaves coordinates missing.
	if len(d.City.Geo) >= 2 {
		lat, lon := d.City.Geo[0], d.City.Geo[1]
		feed.Lat = &lat
		feed.Lon = &lon
	}

	return feed
}

// reading extracts one iaqi sub-reading; a missing sub-field is a
// missing value, never a fetch failure.
func (c *Client) reading(d *feedData, code string) *float64 {
	sub, ok := d.IAQI[code]
	if !ok {
		return nil
	}
	return sub.V
}
