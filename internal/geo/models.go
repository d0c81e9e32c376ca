// Package geo provides the per-coordinate enrichment lookups:
// population density near a point and distance to the nearest tagged
// industrial area.
package geo

import "context"

// Bbox is a bounding box expressed as min/max latitude and longitude.
type Bbox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// degreesPerKm approximates 1 degree of latitude as 111 km.
const degreesPerKm = 1.0 / 111.0

// BboxAround builds a bounding box of the given radius around a point.
func BboxAround(lat, lon, radiusKm float64) Bbox {
	delta := radiusKm * degreesPerKm
	return Bbox{
		MinLat: lat - delta,
		MinLon: lon - delta,
		MaxLat: lat + delta,
		MaxLon: lon + delta,
	}
}

// Place is a populated-place feature returned by a feature source.
// Population is kept as the raw tag string; upstream values may carry
// thousands separators.
type Place struct {
	Name       string
	Lat        float64
	Lon        float64
	Population string
}

// SearchResult is a place-search hit with coordinates as the upstream
// reports them: strings that may or may not parse.
type SearchResult struct {
	Lat string
	Lon string
}

// PlaceSource queries populated places inside a bounding box.
type PlaceSource interface {
	PlacesWithPopulation(ctx context.Context, box Bbox) ([]Place, error)
}

// IndustrySource searches for industrial features near a point. The
// viewbox is a hint to the upstream, not a strict cutoff: results
// outside the box may come back and still count.
type IndustrySource interface {
	SearchIndustrial(ctx context.Context, lat, lon, radiusKm float64) ([]SearchResult, error)
}
