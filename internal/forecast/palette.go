package forecast

import "github.com/sorairo/tenki/internal/models"

// weatherIcons maps OpenWeatherMap icon codes to emoji.
var weatherIcons = map[string]string{
	"01d": "☀️", "01n": "🌙",
	"02d": "⛅", "02n": "☁️",
	"03d": "☁️", "03n": "☁️",
	"04d": "☁️", "04n": "☁️",
	"09d": "🌧️", "09n": "🌧️",
	"10d": "🌦️", "10n": "🌧️",
	"11d": "⛈️", "11n": "⛈️",
	"13d": "❄️", "13n": "❄️",
	"50d": "🌫️", "50n": "🌫️",
}

const defaultIcon = "🌤️"

// Icon returns the emoji for an OpenWeatherMap icon code.
func Icon(code string) string {
	if icon, ok := weatherIcons[code]; ok {
		return icon
	}
	return defaultIcon
}

// backgroundGradients maps a weather category to the page background.
var backgroundGradients = map[models.Category]string{
	models.CategoryClear:        "linear-gradient(135deg, #667eea 0%, #764ba2 100%)",
	models.CategoryClouds:       "linear-gradient(135deg, #757F9A 0%, #D7DDE8 100%)",
	models.CategoryRain:         "linear-gradient(135deg, #4B79A1 0%, #283E51 100%)",
	models.CategoryDrizzle:      "linear-gradient(135deg, #89F7FE 0%, #66A6FF 100%)",
	models.CategoryThunderstorm: "linear-gradient(135deg, #2C3E50 0%, #4CA1AF 100%)",
	models.CategorySnow:         "linear-gradient(135deg, #E6DADA 0%, #274046 100%)",
	models.CategoryMist:         "linear-gradient(135deg, #606c88 0%, #3f4c6b 100%)",
	models.CategoryFog:          "linear-gradient(135deg, #606c88 0%, #3f4c6b 100%)",
}

// Gradient returns the background gradient for a category, falling back to Clear.
func Gradient(c models.Category) string {
	if g, ok := backgroundGradients[c]; ok {
		return g
	}
	return backgroundGradients[models.CategoryClear]
}

// Palette defines the card colors for a weather condition + time of day.
type Palette struct {
	// Card is the background for cards/panels
	Card string
	// CardBorder is an optional border/highlight for cards
	CardBorder string
	// Text is the primary text color
	Text string
	// TextMuted is the secondary/muted text color
	TextMuted string
	// Accent is the primary accent color (links, highlights)
	Accent string
	// Warning highlights risky advisories.
	Warning string
}

// DefaultPalette is the fallback light theme.
var DefaultPalette = Palette{
	Card:       "rgba(255, 255, 255, 0.92)",
	CardBorder: "#e0e0ef",
	Text:       "#222233",
	TextMuted:  "#666677",
	Accent:     "#667eea",
	Warning:    "#d9534f",
}

var nightPalette = Palette{
	Card:       "rgba(20, 24, 40, 0.88)",
	CardBorder: "#2a2a4e",
	Text:       "#eeeeee",
	TextMuted:  "#9090a8",
	Accent:     "#4fc3f7",
	Warning:    "#ff7043",
}

// palettes overrides the defaults for conditions that need more contrast.
var palettes = map[string]Palette{
	"heavy_rain_day": {
		Card:       "rgba(240, 244, 250, 0.94)",
		CardBorder: "#b0c0d8",
		Text:       "#1a2a3a",
		TextMuted:  "#4a5a6a",
		Accent:     "#2060a0",
		Warning:    "#c0392b",
	},
	"storm_day": {
		Card:       "rgba(230, 236, 240, 0.94)",
		CardBorder: "#9aa8b0",
		Text:       "#101820",
		TextMuted:  "#405060",
		Accent:     "#2c7a8a",
		Warning:    "#c0392b",
	},
	"fog_day": {
		Card:       "rgba(244, 244, 248, 0.94)",
		CardBorder: "#c8c8d8",
		Text:       "#202030",
		TextMuted:  "#606070",
		Accent:     "#505a80",
		Warning:    "#b03a2e",
	},
	"hot_day": {
		Card:       "rgba(255, 250, 240, 0.94)",
		CardBorder: "#e8d0b0",
		Text:       "#2a2018",
		TextMuted:  "#706050",
		Accent:     "#d07020",
		Warning:    "#c04010",
	},
	"snow_day": {
		Card:       "rgba(250, 252, 255, 0.95)",
		CardBorder: "#c4d4e4",
		Text:       "#102030",
		TextMuted:  "#406080",
		Accent:     "#2080b8",
		Warning:    "#c06040",
	},
}

// GetPalette returns the color palette for a weather condition and time of day.
func GetPalette(condition WeatherCondition, tod TimeOfDay) Palette {
	if p, ok := palettes[string(ConditionWithTime(condition, tod))]; ok {
		return p
	}
	if tod == TimeNight {
		return nightPalette
	}
	return DefaultPalette
}
