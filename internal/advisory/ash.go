package advisory

import (
	"fmt"

	"github.com/sorairo/tenki/internal/models"
)

// Ash risk assumes the hazard sits due east of the observation point, so
// only easterly winds carry ash toward it.
const (
	ashHighSpeed   = 5.0
	ashMediumSpeed = 3.0
)

type AshRiskAdvice struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	IsRisky   bool      `json:"isRisky"`
	Message   string    `json:"message"`
}

// CheckAshRisk classifies ash-fall risk from the wind direction (degrees the
// wind blows from) and speed in m/s. 135° belongs to the easterly band.
func CheckAshRisk(deg, speed float64) AshRiskAdvice {
	switch {
	case deg >= 45 && deg <= 135:
		switch {
		case speed >= ashHighSpeed:
			return AshRiskAdvice{
				RiskLevel: RiskHigh,
				IsRisky:   true,
				Message:   fmt.Sprintf("east wind at %.1f m/s: ash fall likely", speed),
			}
		case speed >= ashMediumSpeed:
			return AshRiskAdvice{
				RiskLevel: RiskMedium,
				IsRisky:   true,
				Message:   fmt.Sprintf("east wind at %.1f m/s: some ash fall possible", speed),
			}
		default:
			return AshRiskAdvice{
				RiskLevel: RiskLow,
				Message:   fmt.Sprintf("east wind at %.1f m/s: wind too weak to carry ash", speed),
			}
		}
	case deg > 135 && deg <= 225:
		return AshRiskAdvice{
			RiskLevel: RiskLow,
			Message:   fmt.Sprintf("south wind at %.1f m/s: ash unlikely", speed),
		}
	default:
		return AshRiskAdvice{
			RiskLevel: RiskLow,
			Message:   fmt.Sprintf("other wind at %.1f m/s: ash carried away", speed),
		}
	}
}

func CheckAshRiskWind(w models.Wind) AshRiskAdvice {
	return CheckAshRisk(w.Deg, w.Speed)
}
