package collector

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/latamaq/latamaq/internal/airquality"
)

// SnapshotPath returns the output path for a run dated by the given
// time: <outputDir>/<prefix><YYYY-MM-DD>.csv.
func (c *Collector) SnapshotPath() string {
	date := c.now().Format("2006-01-02")
	return filepath.Join(c.config.OutputDir, c.config.FilePrefix+date+".csv")
}

// header returns the column names. The enrichment columns appear only
// when the corresponding lookup is enabled.
func (c *Collector) header() []string {
	cols := []string{
		"City", "Country", "Latitude", "Longitude",
		"Temperature", "Humidity", "PM2.5", "PM10", "NO2", "SO2", "CO",
		"AQI", "Air_Quality_Category",
	}
	if c.config.EnrichPopulation {
		cols = append(cols, "Population_Density")
	}
	if c.config.EnrichIndustry {
		cols = append(cols, "Proximity_to_Industrial_Areas")
	}
	return append(cols, "Timestamp")
}

// writeSnapshot writes all accumulated rows as one CSV file and returns
// its path.
func (c *Collector) writeSnapshot(rows []*airquality.CityRow) (string, error) {
	path := c.SnapshotPath()

	if err := os.MkdirAll(c.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(c.header()); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for _, row := range rows {
		if err := w.Write(c.record(row)); err != nil {
			return "", fmt.Errorf("write row for %s: %w", row.City, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush snapshot: %w", err)
	}
	return path, nil
}

func (c *Collector) record(row *airquality.CityRow) []string {
	rec := []string{
		row.City,
		row.Country,
		cell(row.Latitude),
		cell(row.Longitude),
		cell(row.Temperature),
		cell(row.Humidity),
		cell(row.PM25),
		cell(row.PM10),
		cell(row.NO2),
		cell(row.SO2),
		cell(row.CO),
		cell(row.AQI),
		categoryCell(row.Category),
	}
	if c.config.EnrichPopulation {
		rec = append(rec, cell(row.PopulationDensity))
	}
	if c.config.EnrichIndustry {
		rec = append(rec, cell(row.IndustrialProximity))
	}
	return append(rec, row.Timestamp)
}

// cell renders an optional number; missing values are empty cells.
func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func categoryCell(c *airquality.Category) string {
	if c == nil {
		return ""
	}
	return string(*c)
}
