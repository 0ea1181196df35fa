package models

import (
	"sort"
	"strings"
	"time"
)

// Category is the primary weather category reported for a sample.
// Values match OpenWeatherMap's weather[0].main field.
type Category string

const (
	CategoryClear        Category = "Clear"
	CategoryClouds       Category = "Clouds"
	CategoryRain         Category = "Rain"
	CategoryDrizzle      Category = "Drizzle"
	CategoryThunderstorm Category = "Thunderstorm"
	CategorySnow         Category = "Snow"
	CategoryMist         Category = "Mist"
	CategoryFog          Category = "Fog"
)

// IsRain reports whether the category means falling rain.
func (c Category) IsRain() bool {
	switch c {
	case CategoryRain, CategoryDrizzle, CategoryThunderstorm:
		return true
	}
	return false
}

type Wind struct {
	Speed float64 `json:"speed"` // m/s
	Deg   float64 `json:"deg"`   // direction the wind blows from
	Gust  float64 `json:"gust,omitempty"`
}

// ForecastPoint is a single time-stamped weather sample.
type ForecastPoint struct {
	Time        time.Time `json:"time"`
	Temp        float64   `json:"temp"`
	FeelsLike   float64   `json:"feelsLike"`
	Humidity    int       `json:"humidity"`
	Pop         float64   `json:"pop"` // 0.0 - 1.0
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Pressure    float64   `json:"pressure"` // hPa
	Wind        Wind      `json:"wind"`
}

// ForecastSeries is a chronological sequence of samples for one location.
type ForecastSeries []ForecastPoint

type CurrentConditions struct {
	ForecastPoint
	StationName string    `json:"stationName"`
	Visibility  int       `json:"visibility"` // metres
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
}

type Location struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	HasAsh  bool    `json:"hasAsh"`
	Volcano string  `json:"volcano,omitempty"` // matched against ash-fall bulletins
}

// LocationWeather is one entry of the weather document.
type LocationWeather struct {
	Location
	Current    CurrentConditions `json:"current"`
	Forecast   ForecastSeries    `json:"forecast"`
	LastUpdate time.Time         `json:"lastUpdate"`
}

// Document is the keyed weather document written by ingestion and read by the dashboard.
type Document map[string]LocationWeather

// Lookup finds a location by key, ignoring case.
func (d Document) Lookup(key string) (LocationWeather, bool) {
	lw, ok := d[strings.ToLower(strings.TrimSpace(key))]
	return lw, ok
}

// Keys returns the location keys in the order given by locs, followed by
// any remaining keys in the document.
func (d Document) Keys(locs []Location) []string {
	seen := make(map[string]bool, len(d))
	var keys []string
	for _, l := range locs {
		if _, ok := d[l.Key]; ok {
			keys = append(keys, l.Key)
			seen[l.Key] = true
		}
	}
	var rest []string
	for k := range d {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

type BuildInfo struct {
	BuildTime time.Time `json:"buildTime"`
	Timestamp int64     `json:"timestamp"` // unix millis
	RunID     string    `json:"runId"`
}
