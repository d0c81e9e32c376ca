package airquality

// Category is the discrete air quality label derived from an AQI value.
type Category string

const (
	CategoryGood      Category = "Good"
	CategoryModerate  Category = "Moderate"
	CategoryPoor      Category = "Poor"
	CategoryHazardous Category = "Hazardous"
)

// Categorize maps an AQI value to its category. A missing index maps to
// a missing category, never to Hazardous: an index the upstream could
// not report is unknown air, not the worst air.
func Categorize(aqi *float64) *Category {
	if aqi == nil {
		return nil
	}

	var c Category
	switch v := *aqi; {
	case v <= 50:
		c = CategoryGood
	case v <= 100:
		c = CategoryModerate
	case v <= 250:
		c = CategoryPoor
	default:
		c = CategoryHazardous
	}
	return &c
}
