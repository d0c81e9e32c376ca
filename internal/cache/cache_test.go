package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latamaq/latamaq/internal/airquality"
	"github.com/latamaq/latamaq/internal/cache"
)

func TestStore_FloatRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	store, err := cache.Open(cache.NewFilePersister(path), zerolog.Nop())
	require.NoError(t, err)

	density := 1234.56
	require.NoError(t, store.PutFloat("pop_19.43_-99.13", &density))

	// Reload from disk: the entry survives with its exact value.
	reloaded, err := cache.Open(cache.NewFilePersister(path), zerolog.Nop())
	require.NoError(t, err)

	got, ok := reloaded.Float("pop_19.43_-99.13")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, 1234.56, *got)
}

func TestStore_ExplicitNullSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	store, err := cache.Open(cache.NewFilePersister(path), zerolog.Nop())
	require.NoError(t, err)

	// "Looked up and found nothing" is a real entry.
	require.NoError(t, store.PutFloat("industry_0_0", nil))

	reloaded, err := cache.Open(cache.NewFilePersister(path), zerolog.Nop())
	require.NoError(t, err)

	got, ok := reloaded.Float("industry_0_0")
	assert.True(t, ok, "explicit null must still count as a hit")
	assert.Nil(t, got)

	// A key never written is a miss, not a null hit.
	_, ok = reloaded.Float("industry_1_1")
	assert.False(t, ok)
}

func TestStore_RowRoundTrip(t *testing.T) {
	persister := cache.NewMemoryPersister()
	store, err := cache.Open(persister, zerolog.Nop())
	require.NoError(t, err)

	lat, lon, aqi := 19.43, -99.13, 75.0
	category := airquality.CategoryModerate
	row := &airquality.CityRow{
		City:      "Mexico City",
		Country:   "Mexico",
		Latitude:  &lat,
		Longitude: &lon,
		AQI:       &aqi,
		Category:  &category,
		Timestamp: "2024-03-05T12:00:00Z",
	}

	require.NoError(t, store.PutRow("Mexico City,Mexico", row))

	got, ok := store.Row("Mexico City,Mexico")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, "Mexico City", got.City)
	require.NotNil(t, got.AQI)
	assert.Equal(t, 75.0, *got.AQI)
	require.NotNil(t, got.Category)
	assert.Equal(t, airquality.CategoryModerate, *got.Category)

	// Fields never set stay missing through the round trip.
	assert.Nil(t, got.PM25)
	assert.Nil(t, got.PopulationDensity)
}

func TestStore_FlushesAfterEveryPut(t *testing.T) {
	persister := cache.NewMemoryPersister()
	store, err := cache.Open(persister, zerolog.Nop())
	require.NoError(t, err)

	v := 1.0
	require.NoError(t, store.PutFloat("a", &v))
	require.NoError(t, store.PutFloat("b", &v))
	require.NoError(t, store.PutFloat("c", nil))

	assert.Equal(t, 3, persister.SaveCount)
	assert.Equal(t, 3, store.Len())
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	store, err := cache.Open(cache.NewFilePersister(path), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := cache.Open(cache.NewFilePersister(path), zerolog.Nop())
	require.Error(t, err)
}
