package collector_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latamaq/latamaq/internal/airquality"
	"github.com/latamaq/latamaq/internal/cache"
	"github.com/latamaq/latamaq/internal/collector"
)

// fakeFeed serves canned search and feed responses per country/city.
type fakeFeed struct {
	stations   map[string][]airquality.Station
	searchErrs map[string]error
	feeds      map[string]*airquality.Feed
	feedErrs   map[string]error
	feedCalls  int
}

func (f *fakeFeed) Search(_ context.Context, keyword string) ([]airquality.Station, error) {
	if err := f.searchErrs[keyword]; err != nil {
		return nil, err
	}
	return f.stations[keyword], nil
}

func (f *fakeFeed) CityFeed(_ context.Context, city string) (*airquality.Feed, error) {
	f.feedCalls++
	if err := f.feedErrs[city]; err != nil {
		return nil, err
	}
	feed, ok := f.feeds[city]
	if !ok {
		return nil, airquality.ErrFeedUnavailable
	}
	return feed, nil
}

// recordingGeo counts enrichment invocations.
type recordingGeo struct {
	densityCalls  int
	industryCalls int
	density       *float64
	distance      *float64
}

func (g *recordingGeo) PopulationDensity(_ context.Context, _, _ float64) (*float64, error) {
	g.densityCalls++
	return g.density, nil
}

func (g *recordingGeo) NearestIndustrialDistance(_ context.Context, _, _ float64) (*float64, error) {
	g.industryCalls++
	return g.distance, nil
}

func floatPtr(v float64) *float64 { return &v }

func fixedClock(value string) func() time.Time {
	t, _ := time.Parse(time.RFC3339, value)
	return func() time.Time { return t }
}

func mexicoFeed() *airquality.Feed {
	return &airquality.Feed{
		AQI:  floatPtr(75),
		PM25: floatPtr(40),
		Lat:  floatPtr(19.43),
		Lon:  floatPtr(-99.13),
	}
}

func TestCollector_Run_EndToEnd(t *testing.T) {
	feed := &fakeFeed{
		stations: map[string][]airquality.Station{
			"Mexico": {{Name: "Mexico City"}},
		},
		feeds: map[string]*airquality.Feed{
			"Mexico City": mexicoFeed(),
		},
	}

	dir := t.TempDir()
	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			Countries:  []string{"Mexico"},
			FetchDelay: time.Millisecond,
			OutputDir:  dir,
		},
		Feed:   feed,
		Logger: zerolog.Nop(),
		Now:    fixedClock("2024-03-05T10:00:00Z"),
	})

	result, err := col.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, filepath.Join(dir, "daily_update_air_quality_2024-03-05.csv"), result.OutputPath)

	records := readCSV(t, result.OutputPath)
	require.Len(t, records, 2)

	header := records[0]
	assert.Equal(t, []string{
		"City", "Country", "Latitude", "Longitude",
		"Temperature", "Humidity", "PM2.5", "PM10", "NO2", "SO2", "CO",
		"AQI", "Air_Quality_Category", "Timestamp",
	}, header)

	row := records[1]
	byCol := map[string]string{}
	for i, name := range header {
		byCol[name] = row[i]
	}
	assert.Equal(t, "Mexico City", byCol["City"])
	assert.Equal(t, "Mexico", byCol["Country"])
	assert.Equal(t, "19.43", byCol["Latitude"])
	assert.Equal(t, "-99.13", byCol["Longitude"])
	assert.Equal(t, "40", byCol["PM2.5"])
	assert.Equal(t, "75", byCol["AQI"])
	assert.Equal(t, "Moderate", byCol["Air_Quality_Category"])
	assert.NotEmpty(t, byCol["Timestamp"])
}

func TestCollector_Run_FailingCountryDoesNotAbort(t *testing.T) {
	feed := &fakeFeed{
		stations: map[string][]airquality.Station{
			"Chile": {{Name: "Santiago"}},
		},
		searchErrs: map[string]error{
			"Mexico": errors.New("connection reset"),
		},
		feeds: map[string]*airquality.Feed{
			"Santiago": {AQI: floatPtr(30)},
		},
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			Countries:  []string{"Mexico", "Chile"},
			FetchDelay: time.Millisecond,
			OutputDir:  t.TempDir(),
		},
		Feed:   feed,
		Logger: zerolog.Nop(),
	})

	result, err := col.Run(context.Background())
	require.NoError(t, err)

	// Mexico contributes zero rows; Chile still processes.
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, 2, result.Countries)
}

func TestCollector_Run_FailedFetchIsSkipNotError(t *testing.T) {
	feed := &fakeFeed{
		stations: map[string][]airquality.Station{
			"Peru": {{Name: "Lima"}, {Name: "Arequipa"}},
		},
		feedErrs: map[string]error{
			"Lima": errors.New("timeout"),
		},
		feeds: map[string]*airquality.Feed{
			"Arequipa": {AQI: floatPtr(55)},
		},
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			Countries:  []string{"Peru"},
			FetchDelay: time.Millisecond,
			OutputDir:  t.TempDir(),
		},
		Feed:   feed,
		Logger: zerolog.Nop(),
	})

	result, err := col.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, 1, result.Skipped)
}

func TestCollector_FetchCity_NonOKStatusYieldsNoRow(t *testing.T) {
	feed := &fakeFeed{} // every city resolves to ErrFeedUnavailable

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{FetchDelay: time.Millisecond},
		Feed:   feed,
		Logger: zerolog.Nop(),
	})

	row, err := col.FetchCity(context.Background(), "Atlantis", "Chile")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCollector_FetchCity_MissingCoordinatesSkipsEnrichment(t *testing.T) {
	geoSource := &recordingGeo{density: floatPtr(100), distance: floatPtr(2)}
	feed := &fakeFeed{
		feeds: map[string]*airquality.Feed{
			"Somewhere": {AQI: floatPtr(42)}, // no coordinates
		},
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			FetchDelay:       time.Millisecond,
			EnrichPopulation: true,
			EnrichIndustry:   true,
		},
		Feed:   feed,
		Geo:    geoSource,
		Logger: zerolog.Nop(),
	})

	row, err := col.FetchCity(context.Background(), "Somewhere", "Brazil")
	require.NoError(t, err)
	require.NotNil(t, row)

	assert.Zero(t, geoSource.densityCalls, "density lookup must not run without coordinates")
	assert.Zero(t, geoSource.industryCalls, "industry lookup must not run without coordinates")
	assert.Nil(t, row.PopulationDensity)
	assert.Nil(t, row.IndustrialProximity)
}

func TestCollector_FetchCity_Enrichment(t *testing.T) {
	geoSource := &recordingGeo{density: floatPtr(117264.65), distance: floatPtr(3.42)}
	feed := &fakeFeed{
		feeds: map[string]*airquality.Feed{"Mexico City": mexicoFeed()},
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			FetchDelay:       time.Millisecond,
			EnrichPopulation: true,
			EnrichIndustry:   true,
		},
		Feed:   feed,
		Geo:    geoSource,
		Logger: zerolog.Nop(),
	})

	row, err := col.FetchCity(context.Background(), "Mexico City", "Mexico")
	require.NoError(t, err)
	require.NotNil(t, row)

	assert.Equal(t, 1, geoSource.densityCalls)
	assert.Equal(t, 1, geoSource.industryCalls)
	require.NotNil(t, row.PopulationDensity)
	assert.Equal(t, 117264.65, *row.PopulationDensity)
	require.NotNil(t, row.IndustrialProximity)
	assert.Equal(t, 3.42, *row.IndustrialProximity)
}

func TestCollector_FetchCity_TogglesOffSkipEnrichment(t *testing.T) {
	geoSource := &recordingGeo{density: floatPtr(1), distance: floatPtr(1)}
	feed := &fakeFeed{
		feeds: map[string]*airquality.Feed{"Mexico City": mexicoFeed()},
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{FetchDelay: time.Millisecond},
		Feed:   feed,
		Geo:    geoSource,
		Logger: zerolog.Nop(),
	})

	row, err := col.FetchCity(context.Background(), "Mexico City", "Mexico")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Zero(t, geoSource.densityCalls)
	assert.Zero(t, geoSource.industryCalls)
}

func TestCollector_FetchCity_CachedRowSkipsFetch(t *testing.T) {
	store, err := cache.Open(cache.NewMemoryPersister(), zerolog.Nop())
	require.NoError(t, err)

	cached := &airquality.CityRow{City: "Bogota", Country: "Colombia", Timestamp: "2024-01-01T00:00:00Z"}
	require.NoError(t, store.PutRow("Bogota,Colombia", cached))

	feed := &fakeFeed{}
	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{FetchDelay: time.Millisecond},
		Feed:   feed,
		Store:  store,
		Logger: zerolog.Nop(),
	})

	row, err := col.FetchCity(context.Background(), "Bogota", "Colombia")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Bogota", row.City)
	assert.Zero(t, feed.feedCalls, "cached row must not trigger a feed call")
}

func TestCollector_FetchCity_WritesThroughCache(t *testing.T) {
	store, err := cache.Open(cache.NewMemoryPersister(), zerolog.Nop())
	require.NoError(t, err)

	feed := &fakeFeed{
		feeds: map[string]*airquality.Feed{"Mexico City": mexicoFeed()},
	}
	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{FetchDelay: time.Millisecond},
		Feed:   feed,
		Store:  store,
		Logger: zerolog.Nop(),
	})

	_, err = col.FetchCity(context.Background(), "Mexico City", "Mexico")
	require.NoError(t, err)

	got, ok := store.Row("Mexico City,Mexico")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, "Mexico City", got.City)
}

func TestCollector_SnapshotPath(t *testing.T) {
	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{},
		Feed:   &fakeFeed{},
		Logger: zerolog.Nop(),
		Now:    fixedClock("2024-03-05T23:59:00Z"),
	})

	assert.Equal(t,
		filepath.Join("daily_updates", "daily_update_air_quality_2024-03-05.csv"),
		col.SnapshotPath())
}

func TestCollector_Run_ContextCancelled(t *testing.T) {
	feed := &fakeFeed{
		stations: map[string][]airquality.Station{
			"Mexico": {{Name: "A"}, {Name: "B"}, {Name: "C"}},
		},
		feeds: map[string]*airquality.Feed{
			"A": {AQI: floatPtr(10)},
			"B": {AQI: floatPtr(20)},
			"C": {AQI: floatPtr(30)},
		},
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			Countries:  []string{"Mexico"},
			FetchDelay: time.Hour, // the pause is where cancellation lands
			OutputDir:  t.TempDir(),
		},
		Feed:   feed,
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Rows gathered before the interrupt are still written.
	result, err := col.Run(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Rows, 1)
	assert.FileExists(t, result.OutputPath)
}

func TestCollector_Status(t *testing.T) {
	feed := &fakeFeed{
		stations: map[string][]airquality.Station{
			"Uruguay": {{Name: "Montevideo"}},
		},
		feeds: map[string]*airquality.Feed{
			"Montevideo": {AQI: floatPtr(18)},
		},
	}

	col := collector.New(collector.CollectorConfig{
		Config: collector.Config{
			Countries:  []string{"Uruguay"},
			FetchDelay: time.Millisecond,
			OutputDir:  t.TempDir(),
		},
		Feed:   feed,
		Logger: zerolog.Nop(),
	})

	assert.False(t, col.Status().Running)

	_, err := col.Run(context.Background())
	require.NoError(t, err)

	status := col.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.CountriesDone)
	assert.Equal(t, 1, status.Fetched)
	assert.Equal(t, 0, status.Skipped)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}
