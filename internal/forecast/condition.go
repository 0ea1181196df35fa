package forecast

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sorairo/tenki/internal/models"
)

// WeatherCondition is a coarse weather state used to pick banner images and palettes.
type WeatherCondition string

const (
	ConditionClearWarm    WeatherCondition = "clear_warm"
	ConditionClearCool    WeatherCondition = "clear_cool"
	ConditionPartlyCloudy WeatherCondition = "partly_cloudy"
	ConditionMostlyCloudy WeatherCondition = "mostly_cloudy"
	ConditionLightRain    WeatherCondition = "light_rain"
	ConditionHeavyRain    WeatherCondition = "heavy_rain"
	ConditionStorm        WeatherCondition = "storm"
	ConditionSnow         WeatherCondition = "snow"
	ConditionFog          WeatherCondition = "fog"
	ConditionHot          WeatherCondition = "hot"
	ConditionFrost        WeatherCondition = "frost"
)

// TimeOfDay represents the lighting period.
type TimeOfDay string

const (
	TimeDay   TimeOfDay = "day"
	TimeDusk  TimeOfDay = "dusk"
	TimeNight TimeOfDay = "night"
	TimeDawn  TimeOfDay = "dawn"
)

// GetTimeOfDay returns the lighting period for t in its own location.
func GetTimeOfDay(t time.Time) TimeOfDay {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 7:
		return TimeDawn
	case hour >= 7 && hour < 17:
		return TimeDay
	case hour >= 17 && hour < 19:
		return TimeDusk
	default:
		return TimeNight
	}
}

// MoonPhase represents the current lunar phase.
type MoonPhase string

const (
	MoonNew            MoonPhase = "new"
	MoonWaxingCrescent MoonPhase = "waxing_crescent"
	MoonFirstQuarter   MoonPhase = "first_quarter"
	MoonWaxingGibbous  MoonPhase = "waxing_gibbous"
	MoonFull           MoonPhase = "full"
	MoonWaningGibbous  MoonPhase = "waning_gibbous"
	MoonLastQuarter    MoonPhase = "last_quarter"
	MoonWaningCrescent MoonPhase = "waning_crescent"
)

// LunarCycle is approximately 29.53 days.
const LunarCycle = 29.53

// referenceNewMoon is a known new moon (January 6, 2000 18:14 UTC).
var referenceNewMoon = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

func lunarAge(t time.Time) float64 {
	days := t.Sub(referenceNewMoon).Hours() / 24
	age := math.Mod(days, LunarCycle)
	if age < 0 {
		age += LunarCycle
	}
	return age
}

// GetMoonPhase returns the lunar phase at t, in eight steps.
func GetMoonPhase(t time.Time) MoonPhase {
	switch int(lunarAge(t) / LunarCycle * 8) {
	case 0:
		return MoonNew
	case 1:
		return MoonWaxingCrescent
	case 2:
		return MoonFirstQuarter
	case 3:
		return MoonWaxingGibbous
	case 4:
		return MoonFull
	case 5:
		return MoonWaningGibbous
	case 6:
		return MoonLastQuarter
	default:
		return MoonWaningCrescent
	}
}

// MoonIllumination returns approximate illumination percentage (0-100).
func MoonIllumination(t time.Time) int {
	angle := lunarAge(t) / LunarCycle * 2 * math.Pi
	return int((1 - math.Cos(angle)) / 2 * 100)
}

func moonPrompt(phase MoonPhase) string {
	switch phase {
	case MoonNew:
		return "No visible moon, very dark sky, stars prominent"
	case MoonWaxingCrescent, MoonWaningCrescent:
		return "Thin crescent moon visible"
	case MoonFirstQuarter, MoonLastQuarter:
		return "Half moon visible"
	case MoonWaxingGibbous, MoonWaningGibbous:
		return "Nearly full moon, bright moonlight"
	case MoonFull:
		return "Bright full moon illuminating the harbour"
	default:
		return "Moon visible in sky"
	}
}

// ExtractCondition maps a sample to a condition. Temperature extremes take
// priority over the reported category.
func ExtractCondition(p models.ForecastPoint) WeatherCondition {
	if p.Temp >= 35 {
		return ConditionHot
	}
	if p.Temp <= 2 && p.Category != models.CategorySnow {
		return ConditionFrost
	}

	switch p.Category {
	case models.CategoryThunderstorm:
		return ConditionStorm
	case models.CategoryRain:
		if p.Pop >= 0.8 || strings.HasPrefix(p.Icon, "09") {
			return ConditionHeavyRain
		}
		return ConditionLightRain
	case models.CategoryDrizzle:
		return ConditionLightRain
	case models.CategorySnow:
		return ConditionSnow
	case models.CategoryMist, models.CategoryFog:
		return ConditionFog
	case models.CategoryClouds:
		// 04x is broken/overcast cloud.
		if strings.HasPrefix(p.Icon, "04") {
			return ConditionMostlyCloudy
		}
		return ConditionPartlyCloudy
	}

	if p.Temp >= 25 {
		return ConditionClearWarm
	}
	return ConditionClearCool
}

// ConditionWithTime combines a weather condition with time of day for cache keys.
func ConditionWithTime(condition WeatherCondition, tod TimeOfDay) WeatherCondition {
	return WeatherCondition(fmt.Sprintf("%s_%s", condition, tod))
}

// ParseConditionWithTime splits a key such as "storm_night" into its parts.
func ParseConditionWithTime(s string) (WeatherCondition, TimeOfDay, bool) {
	for _, tod := range []TimeOfDay{TimeDawn, TimeDay, TimeDusk, TimeNight} {
		if cond, ok := strings.CutSuffix(s, "_"+string(tod)); ok {
			if _, known := conditionPrompts[WeatherCondition(cond)]; known {
				return WeatherCondition(cond), tod, true
			}
		}
	}
	return WeatherCondition(s), TimeDay, false
}

// Known reports whether c is one of the defined banner conditions.
func (c WeatherCondition) Known() bool {
	_, ok := conditionPrompts[c]
	return ok
}

// ParseOverride parses a ?weather= preview value. It accepts a bare
// condition ("storm"), which keeps tod, or a condition with a time of day
// ("storm_night"). Anything else is rejected.
func ParseOverride(s string, tod TimeOfDay) (WeatherCondition, TimeOfDay, bool) {
	if c, t, ok := ParseConditionWithTime(s); ok {
		return c, t, true
	}
	if c := WeatherCondition(s); c.Known() {
		return c, tod, true
	}
	return "", tod, false
}

const baseStylePrompt = `Serene watercolor painting of a southern Japanese harbour city.
Low hills, tiled rooftops in the distance, calm bay water, a volcano on the far horizon.
Style: impressionistic watercolor, soft gradients, muted tones, peaceful and minimal.
Wide panoramic composition suitable for a website header banner.
No text, no people, no animals.`

var conditionPrompts = map[WeatherCondition]string{
	ConditionClearWarm:    "Warm temperature, clear sky, no clouds, bright sea.",
	ConditionClearCool:    "Cool temperature, clear sky, crisp air feeling.",
	ConditionPartlyCloudy: "Scattered clouds drifting across sky, patches of clear sky visible.",
	ConditionMostlyCloudy: "Overcast, heavy cloud cover, soft diffused light, muted colors.",
	ConditionLightRain:    "Light rain falling, wet glistening streets, grey sky.",
	ConditionHeavyRain:    "Heavy rain, dark grey clouds, dramatic atmosphere, wet surfaces.",
	ConditionStorm:        "Dramatic stormy sky, lightning over the bay, dark threatening clouds.",
	ConditionSnow:         "Light snow falling, white rooftops, hushed atmosphere.",
	ConditionFog:          "Mist floating over the bay, ethereal atmosphere, soft edges.",
	ConditionHot:          "Very hot, heat shimmer over the water, intense summer sun.",
	ConditionFrost:        "Cold, frost on rooftops, cold blue tones, crisp air.",
}

var timePrompts = map[TimeOfDay]string{
	TimeDawn:  "Early dawn, soft pink and orange glow on horizon, cool blue shadows.",
	TimeDay:   "Midday, bright daylight, clear visibility, warm natural lighting.",
	TimeDusk:  "Sunset, golden hour, warm orange and pink sky, long shadows.",
	TimeNight: "NIGHTTIME SCENE. Dark night sky, no sunlight. Stars over a deep blue-black sky. City lights reflected on the water.",
}

// BuildPrompt creates the image generation prompt for a condition, time of
// day and moon phase. The moon only matters at night.
func BuildPrompt(condition WeatherCondition, tod TimeOfDay, moon MoonPhase) string {
	conditionDesc, ok := conditionPrompts[condition]
	if !ok {
		conditionDesc = conditionPrompts[ConditionClearCool]
	}

	timeDesc := timePrompts[tod]
	if tod == TimeNight {
		timeDesc = fmt.Sprintf("NIGHTTIME SCENE. %s. Dark night sky, no sunlight. City lights reflected on the water.", moonPrompt(moon))
	}

	return fmt.Sprintf("%s\n\n%s\n\nWeather conditions: %s", timeDesc, baseStylePrompt, conditionDesc)
}
