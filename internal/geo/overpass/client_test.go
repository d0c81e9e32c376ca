package overpass_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latamaq/latamaq/internal/geo"
	"github.com/latamaq/latamaq/internal/geo/overpass"
)

func TestClient_PlacesWithPopulation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("data")
		assert.Contains(t, query, `"place"~"city|town"`)
		assert.Contains(t, query, `"population"`)

		response := map[string]interface{}{
			"elements": []map[string]interface{}{
				{
					"lat": 19.4326,
					"lon": -99.1332,
					"tags": map[string]string{
						"name":       "Ciudad de México",
						"place":      "city",
						"population": "9,209,944",
					},
				},
				{
					"lat": 19.36,
					"lon": -99.07,
					"tags": map[string]string{
						"name":       "Iztapalapa",
						"place":      "town",
						"population": "1835486",
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := overpass.NewClient(overpass.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	places, err := client.PlacesWithPopulation(context.Background(), geo.BboxAround(19.43, -99.13, 5))
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "Ciudad de México", places[0].Name)
	assert.Equal(t, 19.4326, places[0].Lat)
	assert.Equal(t, "9,209,944", places[0].Population)
	assert.Equal(t, "1835486", places[1].Population)
}

func TestClient_PlacesWithPopulation_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"elements": []interface{}{}})
	}))
	defer server.Close()

	client := overpass.NewClient(overpass.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	places, err := client.PlacesWithPopulation(context.Background(), geo.BboxAround(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestClient_PlacesWithPopulation_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := overpass.NewClient(overpass.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	_, err := client.PlacesWithPopulation(context.Background(), geo.BboxAround(0, 0, 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
