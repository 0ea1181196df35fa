package ingest

import (
	"github.com/sorairo/tenki/internal/models"
)

const (
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagHumidityInvalid    = "humidity_invalid"
	FlagWindDirInvalid     = "wind_dir_invalid"
	FlagWindSpeedUnlikely  = "wind_speed_unlikely"
	FlagPressureOutOfRange = "pressure_out_of_range"
	FlagPopInvalid         = "pop_invalid"
	FlagTimeMissing        = "time_missing"
)

// ValidatePoint returns quality flags for a converted sample. Flagged points
// are still kept; the flags are logged so upstream oddities are visible.
func ValidatePoint(p models.ForecastPoint) []string {
	var flags []string

	if p.Time.IsZero() {
		flags = append(flags, FlagTimeMissing)
	}
	if p.Temp < -40 || p.Temp > 50 {
		flags = append(flags, FlagTempOutOfRange)
	}
	if p.Humidity < 0 || p.Humidity > 100 {
		flags = append(flags, FlagHumidityInvalid)
	}
	if p.Wind.Deg < 0 || p.Wind.Deg > 360 {
		flags = append(flags, FlagWindDirInvalid)
	}
	if p.Wind.Speed < 0 || p.Wind.Speed > 90 {
		flags = append(flags, FlagWindSpeedUnlikely)
	}
	if p.Pressure != 0 && (p.Pressure < 870 || p.Pressure > 1085) {
		flags = append(flags, FlagPressureOutOfRange)
	}
	if p.Pop < 0 || p.Pop > 1 {
		flags = append(flags, FlagPopInvalid)
	}

	return flags
}

// ValidateWeather counts flagged points across current conditions and forecast.
func ValidateWeather(lw models.LocationWeather) map[string]int {
	counts := make(map[string]int)
	for _, f := range ValidatePoint(lw.Current.ForecastPoint) {
		counts[f]++
	}
	for _, p := range lw.Forecast {
		for _, f := range ValidatePoint(p) {
			counts[f]++
		}
	}
	return counts
}
