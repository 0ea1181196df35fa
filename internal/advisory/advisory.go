// Package advisory derives human-facing guidance from current conditions and
// forecast series. Every function is pure and safe for concurrent use.
package advisory

import "github.com/sorairo/tenki/internal/models"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Report bundles every advisory for one location.
type Report struct {
	Key      string         `json:"key"`
	Today    MinMax         `json:"today"`
	HasToday bool           `json:"hasToday"`
	Clothing Clothing       `json:"clothing"`
	Umbrella UmbrellaAdvice `json:"umbrella"`
	Pressure PressureAdvice `json:"pressure"`
	Ash      *AshRiskAdvice `json:"ash,omitempty"`
}

// Advise computes the full report for a location. today is the reference
// date in the forecast's local representation (see DateKey).
func Advise(lw models.LocationWeather, today string) Report {
	mm := TodayMinMax(lw.Forecast, today)
	r := Report{
		Key:      lw.Key,
		Today:    mm,
		HasToday: !mm.IsEmpty(),
		Clothing: RecommendClothing(lw.Current.Temp),
		Umbrella: CheckUmbrella(lw.Forecast),
		Pressure: CheckPressureHeadache(lw.Current.Pressure, lw.Forecast),
	}
	if lw.HasAsh {
		ash := CheckAshRiskWind(lw.Current.Wind)
		r.Ash = &ash
	}
	return r
}
