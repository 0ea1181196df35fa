package api

import (
	"fmt"
	"math"
	"time"

	"github.com/sorairo/tenki/internal/advisory"
	"github.com/sorairo/tenki/internal/forecast"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/volcano"
)

const (
	outlookDays  = 5
	hourlyPoints = 8
	ashLookback  = 24 * time.Hour
)

// IndexData is everything the dashboard template needs.
type IndexData struct {
	Tabs            []LocationTab
	Location        models.Location
	Current         CurrentView
	Advice          advisory.Report
	Hourly          []HourView
	Outlook         []forecast.DayOutlook
	Bulletins       []volcano.Bulletin
	Moon            MoonData
	Palette         forecast.Palette
	Gradient        string
	LastUpdate      string
	WeatherOverride string // e.g. "storm_night", for previewing banners
}

// LocationTab is one entry of the location switcher.
type LocationTab struct {
	Key    string
	Name   string
	Active bool
}

// CurrentView is the current-conditions card.
type CurrentView struct {
	Icon        string
	Temp        float64
	FeelsLike   float64
	Humidity    int
	Pressure    float64
	WindSpeed   float64
	WindDir     string
	Description string
	Visibility  float64 // km
	Sunrise     string
	Sunset      string
}

// HourView is one cell of the 3-hourly strip.
type HourView struct {
	Label string
	Icon  string
	Temp  float64
	Pop   int // percent
}

// MoonData contains moon phase information for display.
type MoonData struct {
	Phase        string
	Illumination int
	Emoji        string
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// compass converts a bearing in degrees to an 8-point compass label.
func compass(deg float64) string {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return compassPoints[int(math.Round(d/45))%8]
}

func clockLabel(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("15:04")
}

func newCurrentView(c models.CurrentConditions, loc *time.Location) CurrentView {
	return CurrentView{
		Icon:        forecast.Icon(c.Icon),
		Temp:        c.Temp,
		FeelsLike:   c.FeelsLike,
		Humidity:    c.Humidity,
		Pressure:    c.Pressure,
		WindSpeed:   c.Wind.Speed,
		WindDir:     compass(c.Wind.Deg),
		Description: c.Description,
		Visibility:  float64(c.Visibility) / 1000,
		Sunrise:     clockLabel(c.Sunrise, loc),
		Sunset:      clockLabel(c.Sunset, loc),
	}
}

func newHourViews(series models.ForecastSeries, n int) []HourView {
	var out []HourView
	for i, p := range series {
		if i >= n {
			break
		}
		out = append(out, HourView{
			Label: fmt.Sprintf("%02d:00", p.Time.Hour()),
			Icon:  forecast.Icon(p.Icon),
			Temp:  p.Temp,
			Pop:   int(math.Round(p.Pop * 100)),
		})
	}
	return out
}

var moonNames = map[forecast.MoonPhase]struct{ name, emoji string }{
	forecast.MoonNew:            {"New Moon", "🌑"},
	forecast.MoonWaxingCrescent: {"Waxing Crescent", "🌒"},
	forecast.MoonFirstQuarter:   {"First Quarter", "🌓"},
	forecast.MoonWaxingGibbous:  {"Waxing Gibbous", "🌔"},
	forecast.MoonFull:           {"Full Moon", "🌕"},
	forecast.MoonWaningGibbous:  {"Waning Gibbous", "🌖"},
	forecast.MoonLastQuarter:    {"Last Quarter", "🌗"},
	forecast.MoonWaningCrescent: {"Waning Crescent", "🌘"},
}

func newMoonData(t time.Time) MoonData {
	phase := forecast.GetMoonPhase(t)
	m := moonNames[phase]
	return MoonData{
		Phase:        m.name,
		Illumination: forecast.MoonIllumination(t),
		Emoji:        m.emoji,
	}
}

// conditionToReadable converts a weather condition to a short English label.
func conditionToReadable(condition forecast.WeatherCondition) string {
	switch condition {
	case forecast.ConditionClearWarm:
		return "Clear & Warm"
	case forecast.ConditionClearCool:
		return "Clear & Cool"
	case forecast.ConditionPartlyCloudy:
		return "Partly Cloudy"
	case forecast.ConditionMostlyCloudy:
		return "Mostly Cloudy"
	case forecast.ConditionLightRain:
		return "Light Rain"
	case forecast.ConditionHeavyRain:
		return "Heavy Rain"
	case forecast.ConditionStorm:
		return "Stormy"
	case forecast.ConditionSnow:
		return "Snow"
	case forecast.ConditionFog:
		return "Foggy"
	case forecast.ConditionHot:
		return "Hot"
	case forecast.ConditionFrost:
		return "Frosty"
	default:
		return ""
	}
}
