package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/latamaq/latamaq/internal/airquality"
	"github.com/latamaq/latamaq/internal/cache"
)

// FeedSource provides station discovery and city feeds.
type FeedSource interface {
	Search(ctx context.Context, keyword string) ([]airquality.Station, error)
	CityFeed(ctx context.Context, city string) (*airquality.Feed, error)
}

// GeoSource provides the optional per-coordinate enrichment lookups.
type GeoSource interface {
	PopulationDensity(ctx context.Context, lat, lon float64) (*float64, error)
	NearestIndustrialDistance(ctx context.Context, lat, lon float64) (*float64, error)
}

// CollectorConfig holds configuration for creating a Collector.
type CollectorConfig struct {
	Config Config
	Feed   FeedSource
	Geo    GeoSource // required only when an enrichment toggle is on
	Store  *cache.Store
	Logger zerolog.Logger

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Collector runs the snapshot sweep.
type Collector struct {
	config Config
	feed   FeedSource
	geo    GeoSource
	store  *cache.Store
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	status Status
}

// Status is a point-in-time progress snapshot of a run.
type Status struct {
	Running        bool      `json:"running"`
	Country        string    `json:"country"`
	CountriesDone  int       `json:"countries_done"`
	CountriesTotal int       `json:"countries_total"`
	Fetched        int       `json:"fetched"`
	Skipped        int       `json:"skipped"`
	StartedAt      time.Time `json:"started_at,omitzero"`
}

// RunResult summarizes one completed run.
type RunResult struct {
	OutputPath string
	Rows       int
	Skipped    int
	Countries  int
	StartedAt  time.Time
	Duration   time.Duration
}

// New creates a new Collector.
func New(cfg CollectorConfig) *Collector {
	config := cfg.Config
	if len(config.Countries) == 0 {
		config.Countries = DefaultCountries()
	}
	if config.FetchDelay == 0 {
		config.FetchDelay = time.Second
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultConfig().OutputDir
	}
	if config.FilePrefix == "" {
		config.FilePrefix = DefaultConfig().FilePrefix
	}
	if config.PreviewRows == 0 {
		config.PreviewRows = DefaultConfig().PreviewRows
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Collector{
		config: config,
		feed:   cfg.Feed,
		geo:    cfg.Geo,
		store:  cfg.Store,
		logger: cfg.Logger,
		now:    now,
	}
}

// Run sweeps every configured country in order and writes the snapshot.
// Individual fetch failures are skips, never fatal; only a failure to
// write the output file is returned as an error.
func (c *Collector) Run(ctx context.Context) (*RunResult, error) {
	started := c.now()
	result := &RunResult{
		StartedAt: started,
		Countries: len(c.config.Countries),
	}

	c.setStatus(func(s *Status) {
		*s = Status{
			Running:        true,
			CountriesTotal: len(c.config.Countries),
			StartedAt:      started,
		}
	})
	defer c.setStatus(func(s *Status) { s.Running = false })

	c.logger.Info().
		Int("countries", len(c.config.Countries)).
		Dur("fetch_delay", c.config.FetchDelay).
		Msg("starting snapshot run")

	var rows []*airquality.CityRow

	for _, country := range c.config.Countries {
		if ctx.Err() != nil {
			c.logger.Warn().Err(ctx.Err()).Msg("run interrupted")
			break
		}

		c.setStatus(func(s *Status) { s.Country = country })

		stations := c.DiscoverStations(ctx, country)
		c.logger.Info().
			Str("country", country).
			Int("stations", len(stations)).
			Msg("discovered stations")

		for _, station := range stations {
			row := c.fetchRow(ctx, station.Name, country)
			if row != nil {
				rows = append(rows, row)
				c.setStatus(func(s *Status) { s.Fetched++ })
			} else {
				result.Skipped++
				c.setStatus(func(s *Status) { s.Skipped++ })
			}

			// Pause after every attempt, failures included, so a
			// failing country cannot hammer the upstream.
			if !c.pause(ctx) {
				break
			}
		}

		c.setStatus(func(s *Status) { s.CountriesDone++ })
	}

	result.Rows = len(rows)

	path, err := c.writeSnapshot(rows)
	if err != nil {
		return result, err
	}
	result.OutputPath = path
	result.Duration = c.now().Sub(started)

	c.logger.Info().
		Str("path", path).
		Int("rows", result.Rows).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("snapshot written")
	c.logPreview(rows)

	return result, nil
}

// DiscoverStations enumerates monitored station names for a country.
// Any failure yields zero stations: a whole country silently missing is
// preferable to aborting the remaining sweep.
func (c *Collector) DiscoverStations(ctx context.Context, country string) []airquality.Station {
	stations, err := c.feed.Search(ctx, country)
	if err != nil {
		if errors.Is(err, airquality.ErrFeedUnavailable) {
			c.logger.Debug().Str("country", country).Msg("search returned no data")
		} else {
			c.logger.Warn().Err(err).Str("country", country).Msg("station search failed")
		}
		return nil
	}

	named := stations[:0]
	for _, s := range stations {
		if s.Name != "" {
			named = append(named, s)
		}
	}
	return named
}

// FetchCity assembles the row for one city: cached row if present,
// otherwise the live feed plus derivation and enrichment. A nil row
// with a nil error means the upstream had no data for the city; a
// non-nil error marks a transport failure. Either way the city is
// skipped, never the run.
func (c *Collector) FetchCity(ctx context.Context, city, country string) (*airquality.CityRow, error) {
	key := rowKey(city, country)
	if c.store != nil {
		if row, ok := c.store.Row(key); ok {
			return row, nil
		}
	}

	c.logger.Debug().Str("city", city).Str("country", country).Msg("fetching city feed")

	feed, err := c.feed.CityFeed(ctx, city)
	if err != nil {
		if errors.Is(err, airquality.ErrFeedUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	row := &airquality.CityRow{
		City:        city,
		Country:     country,
		Latitude:    feed.Lat,
		Longitude:   feed.Lon,
		Temperature: feed.Temperature,
		Humidity:    feed.Humidity,
		PM25:        feed.PM25,
		PM10:        feed.PM10,
		NO2:         feed.NO2,
		SO2:         feed.SO2,
		CO:          feed.CO,
		AQI:         feed.AQI,
		Category:    airquality.Categorize(feed.AQI),
		Timestamp:   airquality.NewTimestamp(c.now()),
	}

	c.enrich(ctx, row)

	if c.store != nil {
		if err := c.store.PutRow(key, row); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("failed to persist cached row")
		}
	}

	return row, nil
}

// enrich runs the optional lookups. Both require a full coordinate
// pair; each is independently failable and never fails the row.
func (c *Collector) enrich(ctx context.Context, row *airquality.CityRow) {
	if c.geo == nil || row.Latitude == nil || row.Longitude == nil {
		return
	}
	lat, lon := *row.Latitude, *row.Longitude

	if c.config.EnrichPopulation {
		density, err := c.geo.PopulationDensity(ctx, lat, lon)
		if err != nil {
			c.logger.Debug().Err(err).Str("city", row.City).Msg("population enrichment unavailable")
		}
		row.PopulationDensity = density
	}

	if c.config.EnrichIndustry {
		dist, err := c.geo.NearestIndustrialDistance(ctx, lat, lon)
		if err != nil {
			c.logger.Debug().Err(err).Str("city", row.City).Msg("industrial enrichment unavailable")
		}
		row.IndustrialProximity = dist
	}
}

// Status returns a copy of the current progress snapshot.
func (c *Collector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Collector) fetchRow(ctx context.Context, city, country string) *airquality.CityRow {
	row, err := c.FetchCity(ctx, city, country)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("city", city).
			Str("country", country).
			Msg("city fetch failed")
		return nil
	}
	if row == nil {
		c.logger.Debug().
			Str("city", city).
			Str("country", country).
			Msg("no data for city")
	}
	return row
}

// pause sleeps for the configured delay. Returns false when the context
// ended first.
func (c *Collector) pause(ctx context.Context) bool {
	timer := time.NewTimer(c.config.FetchDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Collector) setStatus(update func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.status)
}

func (c *Collector) logPreview(rows []*airquality.CityRow) {
	n := c.config.PreviewRows
	if n > len(rows) {
		n = len(rows)
	}
	for i := 0; i < n; i++ {
		r := rows[i]
		ev := c.logger.Info().
			Str("city", r.City).
			Str("country", r.Country)
		if r.AQI != nil {
			ev = ev.Float64("aqi", *r.AQI)
		}
		if r.Category != nil {
			ev = ev.Str("category", string(*r.Category))
		}
		ev.Msg("preview row")
	}
}

// rowKey is the cache key for a city row. The literal comma join
// matches cache files written by earlier collector builds.
func rowKey(city, country string) string {
	return city + "," + country
}
