package advisory

import (
	"fmt"
	"math"
	"strings"

	"github.com/sorairo/tenki/internal/models"
)

// umbrellaWindow is the number of 3-hourly points covering the next 12 hours.
const umbrellaWindow = 4

const (
	umbrellaLikelyPct   = 50.0
	umbrellaPossiblePct = 30.0
)

// UmbrellaNotNeeded is the message returned when no rain is expected.
const UmbrellaNotNeeded = "not needed"

type UmbrellaAdvice struct {
	Needed          bool      `json:"needed"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Message         string    `json:"message"`
	TriggeringHours []string  `json:"triggeringHours,omitempty"`
}

// CheckUmbrella decides whether an umbrella is needed over the first four
// forecast points. Precipitation thresholds are strict: exactly 50% does
// not make an umbrella necessary.
func CheckUmbrella(series models.ForecastSeries) UmbrellaAdvice {
	n := len(series)
	if n > umbrellaWindow {
		n = umbrellaWindow
	}

	var maxPop float64
	var hours []string
	for _, p := range series[:n] {
		if pct := popPercent(p.Pop); pct > maxPop {
			maxPop = pct
		}
		if p.Category.IsRain() {
			hours = append(hours, hourLabel(p))
		}
	}

	switch {
	case len(hours) > 0:
		return UmbrellaAdvice{
			Needed:          true,
			RiskLevel:       RiskHigh,
			Message:         fmt.Sprintf("rain expected at %s, take an umbrella", strings.Join(hours, ", ")),
			TriggeringHours: hours,
		}
	case maxPop > umbrellaLikelyPct:
		return UmbrellaAdvice{
			Needed:    true,
			RiskLevel: RiskMedium,
			Message:   fmt.Sprintf("carry one just in case (%.0f%% chance of rain)", maxPop),
		}
	case maxPop > umbrellaPossiblePct:
		return UmbrellaAdvice{
			Needed:    false,
			RiskLevel: RiskLow,
			Message:   fmt.Sprintf("not needed, but consider one (%.0f%% chance of rain)", maxPop),
		}
	default:
		return UmbrellaAdvice{RiskLevel: RiskLow, Message: UmbrellaNotNeeded}
	}
}

// popPercent converts a probability to a percentage rounded to 0.01%.
// A bare pop*100 turns 0.29 into 28.999999999999996 and 0.57 into
// 56.99999999999999, so values sitting on the 30 and 50 thresholds would
// compare on float noise. OpenWeatherMap reports pop with two decimals, so
// rounding loses nothing real; the cost is that a pop such as 0.500001
// counts as exactly 50%.
func popPercent(pop float64) float64 {
	return math.Round(pop*10000) / 100
}

func hourLabel(p models.ForecastPoint) string {
	return fmt.Sprintf("%02d:00", p.Time.Hour())
}
