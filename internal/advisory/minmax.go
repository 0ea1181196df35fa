package advisory

import (
	"time"

	"github.com/sorairo/tenki/internal/models"
)

const dateLayout = "2006-01-02"

// MinMax holds a day's temperature range. The zero value means no data.
type MinMax struct {
	Max float64 `json:"max"`
	Min float64 `json:"min"`
}

// IsEmpty reports whether m is the no-data sentinel.
func (m MinMax) IsEmpty() bool {
	return m.Max == 0 && m.Min == 0
}

// DateKey formats t as the calendar date used for matching forecast points.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// TodayMinMax returns the temperature range of the points whose calendar
// date equals date. It returns the zero MinMax when nothing matches.
func TodayMinMax(series models.ForecastSeries, date string) MinMax {
	var mm MinMax
	found := false
	for _, p := range series {
		if DateKey(p.Time) != date {
			continue
		}
		if !found {
			mm = MinMax{Max: p.Temp, Min: p.Temp}
			found = true
			continue
		}
		if p.Temp > mm.Max {
			mm.Max = p.Temp
		}
		if p.Temp < mm.Min {
			mm.Min = p.Temp
		}
	}
	return mm
}
