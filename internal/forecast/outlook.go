package forecast

import (
	"fmt"
	"time"

	"github.com/sorairo/tenki/internal/models"
)

// outlookHour is the local hour used as the representative sample of each day.
const outlookHour = 12

var weekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// DayOutlook is one card of the multi-day outlook.
type DayOutlook struct {
	Date        time.Time
	Label       string // e.g. "10/19(月)"
	Icon        string
	Temp        float64
	Description string
	Pop         float64
}

// DailyOutlook picks the noon sample of each day, up to days entries.
func DailyOutlook(series models.ForecastSeries, days int) []DayOutlook {
	var out []DayOutlook
	for _, p := range series {
		if len(out) >= days {
			break
		}
		if p.Time.Hour() != outlookHour {
			continue
		}
		out = append(out, DayOutlook{
			Date:        p.Time,
			Label:       fmt.Sprintf("%d/%d(%s)", int(p.Time.Month()), p.Time.Day(), weekdays[p.Time.Weekday()]),
			Icon:        Icon(p.Icon),
			Temp:        p.Temp,
			Description: p.Description,
			Pop:         p.Pop,
		})
	}
	return out
}

// FormatUpdated formats a last-update timestamp for display in loc.
func FormatUpdated(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006/01/02 15:04")
}
