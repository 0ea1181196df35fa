package advisory

import (
	"fmt"

	"github.com/sorairo/tenki/internal/models"
)

// pressureWindow is the number of 3-hourly points covering the next 6 hours.
const pressureWindow = 2

const (
	pressureLow         = 1005.0
	pressureSomewhatLow = 1013.0
	swingLarge          = 5.0
	swingSome           = 3.0
)

type PressureAdvice struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	IsRisky   bool      `json:"isRisky"`
	Message   string    `json:"message"`
	Pressure  float64   `json:"pressure"`
}

// CheckPressureHeadache rates headache risk from the current pressure and the
// swing across it and the next two forecast points. Absolute pressure checks
// win over swing checks.
func CheckPressureHeadache(current float64, series models.ForecastSeries) PressureAdvice {
	hi, lo := current, current
	n := len(series)
	if n > pressureWindow {
		n = pressureWindow
	}
	for _, p := range series[:n] {
		if p.Pressure > hi {
			hi = p.Pressure
		}
		if p.Pressure < lo {
			lo = p.Pressure
		}
	}
	swing := hi - lo

	a := PressureAdvice{Pressure: current}
	switch {
	case current < pressureLow:
		a.RiskLevel, a.IsRisky = RiskHigh, true
		a.Message = fmt.Sprintf("low pressure warning (%.0f hPa)", current)
	case current < pressureSomewhatLow:
		a.RiskLevel, a.IsRisky = RiskMedium, true
		a.Message = fmt.Sprintf("pressure somewhat low (%.0f hPa)", current)
	case swing >= swingLarge:
		a.RiskLevel, a.IsRisky = RiskHigh, true
		a.Message = fmt.Sprintf("large pressure swing of %.0f hPa expected", swing)
	case swing >= swingSome:
		a.RiskLevel, a.IsRisky = RiskMedium, true
		a.Message = fmt.Sprintf("some pressure change (%.0f hPa) expected", swing)
	default:
		a.RiskLevel = RiskLow
		a.Message = "pressure stable"
	}
	return a
}
