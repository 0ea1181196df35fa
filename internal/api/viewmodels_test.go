package api

import (
	"testing"
	"time"

	"github.com/sorairo/tenki/internal/forecast"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
)

func TestCompass(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{22, "N"},
		{23, "NE"},
		{90, "E"},
		{135, "SE"},
		{200, "S"},
		{270, "W"},
		{340, "N"},
		{360, "N"},
		{-90, "W"},
		{450, "E"},
	}
	for _, tt := range tests {
		if got := compass(tt.deg); got != tt.want {
			t.Errorf("compass(%v) = %q, want %q", tt.deg, got, tt.want)
		}
	}
}

func TestNewHourViews(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, jst)
	var series models.ForecastSeries
	for i := 0; i < 10; i++ {
		series = append(series, models.ForecastPoint{
			Time: base.Add(time.Duration(i*3) * time.Hour),
			Temp: 20 + float64(i),
			Pop:  0.355,
			Icon: "10d",
		})
	}

	views := newHourViews(series, hourlyPoints)
	if len(views) != hourlyPoints {
		t.Fatalf("len = %d, want %d", len(views), hourlyPoints)
	}
	if views[0].Label != "09:00" || views[1].Label != "12:00" {
		t.Errorf("labels = %q, %q", views[0].Label, views[1].Label)
	}
	if views[0].Pop != 36 {
		t.Errorf("pop = %d, want 36", views[0].Pop)
	}
	if views[0].Icon != forecast.Icon("10d") {
		t.Errorf("icon = %q", views[0].Icon)
	}

	if got := newHourViews(nil, hourlyPoints); len(got) != 0 {
		t.Errorf("empty series gave %d views", len(got))
	}
}

func TestNewCurrentView(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	c := models.CurrentConditions{
		ForecastPoint: models.ForecastPoint{Temp: 18.2, Wind: models.Wind{Speed: 4, Deg: 315}},
		Visibility:    8500,
		Sunrise:       time.Date(2026, 10, 18, 21, 5, 0, 0, time.UTC),
	}

	v := newCurrentView(c, jst)
	if v.WindDir != "NW" {
		t.Errorf("WindDir = %q, want NW", v.WindDir)
	}
	if v.Visibility != 8.5 {
		t.Errorf("Visibility = %v, want 8.5", v.Visibility)
	}
	if v.Sunrise != "06:05" {
		t.Errorf("Sunrise = %q, want 06:05", v.Sunrise)
	}
	if v.Sunset != "" {
		t.Errorf("Sunset = %q, want empty", v.Sunset)
	}
}

func TestMoonNamesCoverAllPhases(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 30; d++ {
		m := newMoonData(start.AddDate(0, 0, d))
		if m.Phase == "" || m.Emoji == "" {
			t.Errorf("day %d: missing moon name for phase %v", d, forecast.GetMoonPhase(start.AddDate(0, 0, d)))
		}
	}
}

func TestConditionToReadable(t *testing.T) {
	if got := conditionToReadable(forecast.ConditionStorm); got != "Stormy" {
		t.Errorf("got %q", got)
	}
	if got := conditionToReadable("nonsense"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestMergeIngestHealth(t *testing.T) {
	got := mergeIngestHealth([]store.IngestHealthSummary{
		{Date: "2026-10-19", Source: "owm", Endpoint: "data/2.5/weather", TotalRuns: 3, SuccessRuns: 2, FailedRuns: 1, TotalRecords: 2},
		{Date: "2026-10-19", Source: "jma", Endpoint: "feed/extra", TotalRuns: 1, SuccessRuns: 1, TotalRecords: 4},
		{Date: "2026-10-18", Source: "owm", Endpoint: "data/2.5/weather", TotalRuns: 2, SuccessRuns: 2, TotalRecords: 2},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Source != "owm" || got[0].TotalRuns != 5 || got[0].SuccessRuns != 4 || got[0].FailedRuns != 1 || got[0].Records != 4 {
		t.Errorf("owm = %+v", got[0])
	}
	if got[1].Source != "jma" || got[1].Records != 4 {
		t.Errorf("jma = %+v", got[1])
	}

	if got := mergeIngestHealth(nil); got == nil || len(got) != 0 {
		t.Errorf("mergeIngestHealth(nil) = %#v, want empty slice", got)
	}
}
