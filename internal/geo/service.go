package geo

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/latamaq/latamaq/internal/cache"
)

// Default search radii.
const (
	DefaultPopulationRadiusKm = 5
	DefaultIndustryRadiusKm   = 50
)

// ServiceConfig holds configuration for the enrichment service.
type ServiceConfig struct {
	// Places is the populated-place source (required for density).
	Places PlaceSource

	// Industry is the industrial-feature source (required for proximity).
	Industry IndustrySource

	// Store memoizes lookup results across runs (optional).
	Store *cache.Store

	// Logger for service operations.
	Logger zerolog.Logger

	// PopulationRadiusKm is the density search radius (default: 5).
	PopulationRadiusKm float64

	// IndustryRadiusKm sizes the industrial search viewbox (default: 50).
	IndustryRadiusKm float64
}

// Service performs the two enrichment lookups. Both are best-effort: a
// nil value with a nil error means the upstream genuinely had nothing,
// a non-nil error marks a transient failure. Callers collapse both to a
// missing field; the split exists so failures can be logged apart from
// legitimate absence.
type Service struct {
	places           PlaceSource
	industry         IndustrySource
	store            *cache.Store
	logger           zerolog.Logger
	populationRadius float64
	industryRadius   float64
}

// NewService creates a new enrichment service.
func NewService(cfg ServiceConfig) *Service {
	populationRadius := cfg.PopulationRadiusKm
	if populationRadius == 0 {
		populationRadius = DefaultPopulationRadiusKm
	}
	industryRadius := cfg.IndustryRadiusKm
	if industryRadius == 0 {
		industryRadius = DefaultIndustryRadiusKm
	}

	return &Service{
		places:           cfg.Places,
		industry:         cfg.Industry,
		store:            cfg.Store,
		logger:           cfg.Logger,
		populationRadius: populationRadius,
		industryRadius:   industryRadius,
	}
}

// PopulationDensity estimates people per km² around a point: the
// largest reported population among city/town features in the search
// box, divided by the circle area of the search radius. The
// max-in-bbox policy is deliberately coarse; changing it changes
// snapshot semantics.
func (s *Service) PopulationDensity(ctx context.Context, lat, lon float64) (*float64, error) {
	key := PopulationKey(lat, lon)
	if value, ok := s.cached(key); ok {
		return value, nil
	}

	places, err := s.places.PlacesWithPopulation(ctx, BboxAround(lat, lon, s.populationRadius))
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("population lookup failed")
		s.memoize(key, nil)
		return nil, err
	}

	var maxPop float64
	found := false
	for _, p := range places {
		pop, ok := parsePopulation(p.Population)
		if !ok {
			continue
		}
		if !found || pop > maxPop {
			maxPop = pop
			found = true
		}
	}

	if !found {
		s.memoize(key, nil)
		return nil, nil
	}

	density := round2(maxPop / (math.Pi * s.populationRadius * s.populationRadius))
	s.memoize(key, &density)
	return &density, nil
}

// NearestIndustrialDistance returns the distance in km from the point
// to the closest industrial feature the search turns up.
func (s *Service) NearestIndustrialDistance(ctx context.Context, lat, lon float64) (*float64, error) {
	key := IndustryKey(lat, lon)
	if value, ok := s.cached(key); ok {
		return value, nil
	}

	results, err := s.industry.SearchIndustrial(ctx, lat, lon, s.industryRadius)
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("industrial lookup failed")
		// Transport failures are not memoized: the next run retries.
		return nil, err
	}

	var minDist float64
	found := false
	for _, r := range results {
		featLat, errLat := strconv.ParseFloat(r.Lat, 64)
		featLon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}
		dist := HaversineKm(lat, lon, featLat, featLon)
		if !found || dist < minDist {
			minDist = dist
			found = true
		}
	}

	if !found {
		s.memoize(key, nil)
		return nil, nil
	}

	dist := round2(minDist)
	s.memoize(key, &dist)
	return &dist, nil
}

// PopulationKey is the cache key for a density lookup.
func PopulationKey(lat, lon float64) string {
	return "pop_" + formatCoord(lat) + "_" + formatCoord(lon)
}

// IndustryKey is the cache key for an industrial-proximity lookup.
func IndustryKey(lat, lon float64) string {
	return "industry_" + formatCoord(lat) + "_" + formatCoord(lon)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *Service) cached(key string) (*float64, bool) {
	if s.store == nil {
		return nil, false
	}
	return s.store.Float(key)
}

func (s *Service) memoize(key string, value *float64) {
	if s.store == nil {
		return
	}
	if err := s.store.PutFloat(key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to persist cache entry")
	}
}

// parsePopulation parses a population tag, tolerating thousands
// separators and surrounding whitespace.
func parsePopulation(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
