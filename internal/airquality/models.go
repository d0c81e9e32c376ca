// Package airquality provides the air quality domain model for the
// LATAM snapshot collector.
package airquality

import (
	"errors"
	"time"
)

// Provider errors.
var (
	// ErrFeedUnavailable indicates the upstream reported a non-ok status
	// for a feed or search request. Callers treat this as "no data", not
	// as a transport failure.
	ErrFeedUnavailable = errors.New("feed status not ok")
)

// Station represents a monitored station discovered via a country search.
// Only the name is carried; it drives the subsequent city feed fetch.
type Station struct {
	Name string
}

// Feed is a normalized current-readings report for one city.
// Every value is optional: the upstream omits sub-readings freely and
// reports the index as "-" when it has none.
type Feed struct {
	AQI         *float64
	Temperature *float64
	Humidity    *float64
	PM25        *float64
	PM10        *float64
	NO2         *float64
	SO2         *float64
	CO          *float64
	Lat         *float64
	Lon         *float64
	StationName string
}

// CityRow is the unit of output: one city's readings, the derived
// category, and optional enrichment values. Immutable once assembled.
// JSON tags match the snapshot column names so cached rows stay
// interchangeable with cache files written by earlier collector builds.
type CityRow struct {
	City                string    `json:"City"`
	Country             string    `json:"Country"`
	Latitude            *float64  `json:"Latitude"`
	Longitude           *float64  `json:"Longitude"`
	Temperature         *float64  `json:"Temperature"`
	Humidity            *float64  `json:"Humidity"`
	PM25                *float64  `json:"PM2.5"`
	PM10                *float64  `json:"PM10"`
	NO2                 *float64  `json:"NO2"`
	SO2                 *float64  `json:"SO2"`
	CO                  *float64  `json:"CO"`
	AQI                 *float64  `json:"AQI"`
	Category            *Category `json:"Air_Quality_Category"`
	PopulationDensity   *float64  `json:"Population_Density,omitempty"`
	IndustrialProximity *float64  `json:"Proximity_to_Industrial_Areas,omitempty"`
	Timestamp           string    `json:"Timestamp"`
}

// NewTimestamp formats a fetch time the way rows record it.
func NewTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
