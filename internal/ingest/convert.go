package ingest

import (
	"time"

	"github.com/sorairo/tenki/internal/models"
)

func firstWeather(ws []owmWeather) owmWeather {
	if len(ws) == 0 {
		return owmWeather{}
	}
	return ws[0]
}

func unixIn(sec int64, loc *time.Location) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).In(loc)
}

// ConvertCurrent maps a current-weather response onto the data model.
// All timestamps are expressed in loc.
func ConvertCurrent(r *CurrentResponse, loc *time.Location) models.CurrentConditions {
	w := firstWeather(r.Weather)
	return models.CurrentConditions{
		ForecastPoint: models.ForecastPoint{
			Time:        unixIn(r.Dt, loc),
			Temp:        r.Main.Temp,
			FeelsLike:   r.Main.FeelsLike,
			Humidity:    r.Main.Humidity,
			Category:    models.Category(w.Main),
			Description: w.Description,
			Icon:        w.Icon,
			Pressure:    r.Main.Pressure,
			Wind:        models.Wind{Speed: r.Wind.Speed, Deg: r.Wind.Deg, Gust: r.Wind.Gust},
		},
		StationName: r.Name,
		Visibility:  r.Visibility,
		Sunrise:     unixIn(r.Sys.Sunrise, loc),
		Sunset:      unixIn(r.Sys.Sunset, loc),
	}
}

// ConvertForecast maps the 3-hourly forecast list onto a series in loc.
// Entries keep the upstream order, which is chronological.
func ConvertForecast(r *ForecastResponse, loc *time.Location) models.ForecastSeries {
	series := make(models.ForecastSeries, 0, len(r.List))
	for _, item := range r.List {
		w := firstWeather(item.Weather)
		series = append(series, models.ForecastPoint{
			Time:        unixIn(item.Dt, loc),
			Temp:        item.Main.Temp,
			FeelsLike:   item.Main.FeelsLike,
			Humidity:    item.Main.Humidity,
			Pop:         item.Pop,
			Category:    models.Category(w.Main),
			Description: w.Description,
			Icon:        w.Icon,
			Pressure:    item.Main.Pressure,
			Wind:        models.Wind{Speed: item.Wind.Speed, Deg: item.Wind.Deg, Gust: item.Wind.Gust},
		})
	}
	return series
}
