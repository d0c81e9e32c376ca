// Package collector orchestrates one snapshot run: station discovery
// per country, per-city fetches with enrichment, and the dated CSV
// output.
package collector

import "time"

// Config holds the run parameters.
type Config struct {
	// Countries is the ordered list to sweep. If empty, uses
	// DefaultCountries.
	Countries []string

	// FetchDelay is the pause after every per-city fetch attempt,
	// successful or not. A courtesy rate limit to the upstream; it must
	// hold even for failing stations. Default: 1 second.
	FetchDelay time.Duration

	// OutputDir receives the dated snapshot files.
	// Default: "daily_updates".
	OutputDir string

	// FilePrefix is prepended to the run date in the snapshot name.
	// Default: "daily_update_air_quality_".
	FilePrefix string

	// EnrichPopulation adds the Population_Density column.
	EnrichPopulation bool

	// EnrichIndustry adds the Proximity_to_Industrial_Areas column.
	EnrichIndustry bool

	// PreviewRows is how many leading rows to log after a run.
	// Default: 5.
	PreviewRows int
}

// DefaultConfig returns the standard run parameters.
func DefaultConfig() Config {
	return Config{
		Countries:   DefaultCountries(),
		FetchDelay:  time.Second,
		OutputDir:   "daily_updates",
		FilePrefix:  "daily_update_air_quality_",
		PreviewRows: 5,
	}
}

// DefaultCountries returns the nineteen Latin American countries the
// collector sweeps, in sweep order.
func DefaultCountries() []string {
	return []string{
		"Mexico", "Belize", "Guatemala", "Honduras", "El Salvador",
		"Nicaragua", "Costa Rica", "Panama", "Cuba",
		"Colombia", "Venezuela", "Ecuador", "Peru", "Bolivia", "Brazil",
		"Paraguay", "Uruguay", "Chile", "Argentina",
	}
}
