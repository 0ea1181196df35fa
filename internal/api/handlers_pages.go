package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sorairo/tenki/internal/advisory"
	"github.com/sorairo/tenki/internal/forecast"
	"github.com/sorairo/tenki/internal/ingest"
	"github.com/sorairo/tenki/internal/metrics"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	doc, lw, err := s.loadLocation(r.URL.Query().Get("location"))
	if err != nil {
		s.writePageError(w, err)
		return
	}

	now := s.now().In(s.loc)
	report := advisory.Advise(lw, advisory.DateKey(now))
	metrics.AdvisoriesServed.WithLabelValues(lw.Key, string(report.Umbrella.RiskLevel)).Inc()

	tod := forecast.GetTimeOfDay(now)
	condition := forecast.ExtractCondition(lw.Current.ForecastPoint)

	// ?weather=storm_night previews another palette; unknown values are ignored
	override := r.URL.Query().Get("weather")
	if override != "" {
		if c, t, ok := forecast.ParseOverride(override, tod); ok {
			condition, tod = c, t
		} else {
			override = ""
		}
	}

	data := IndexData{
		Location:        lw.Location,
		Current:         newCurrentView(lw.Current, s.loc),
		Advice:          report,
		Hourly:          newHourViews(lw.Forecast, hourlyPoints),
		Outlook:         forecast.DailyOutlook(lw.Forecast, outlookDays),
		Moon:            newMoonData(now),
		Palette:         forecast.GetPalette(condition, tod),
		Gradient:        forecast.Gradient(lw.Current.Category),
		LastUpdate:      forecast.FormatUpdated(lw.LastUpdate, s.loc),
		WeatherOverride: override,
	}
	for _, key := range doc.Keys(s.locations) {
		data.Tabs = append(data.Tabs, LocationTab{Key: key, Name: doc[key].Name, Active: key == lw.Key})
	}
	if lw.HasAsh && lw.Volcano != "" && s.store != nil {
		bulletins, err := s.store.GetRecentAshBulletins(lw.Volcano, now.Add(-ashLookback), 3)
		if err != nil {
			log.Printf("api: ash bulletins for %s: %v", lw.Volcano, err)
		}
		data.Bulletins = bulletins
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("api: template error: %v", err)
	}
}

func (s *Server) writePageError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: index: %v", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "error.html", map[string]any{"Status": status, "Message": err.Error()}); err != nil {
		log.Printf("api: template error: %v", err)
	}
}

// HealthStatus is the /health response.
type HealthStatus struct {
	Status           string            `json:"status"`
	Locations        []LocationHealth  `json:"locations"`
	Build            *models.BuildInfo `json:"build,omitempty"`
	MigrationVersion int               `json:"migrationVersion"`
	Ingest           []IngestHealth    `json:"ingest"`
	RecentErrors     int               `json:"recentErrors"`
	Errors           []string          `json:"errors,omitempty"`
}

// IngestHealth summarises one source/endpoint over the last day.
type IngestHealth struct {
	Source      string `json:"source"`
	Endpoint    string `json:"endpoint"`
	TotalRuns   int    `json:"totalRuns"`
	SuccessRuns int    `json:"successRuns"`
	FailedRuns  int    `json:"failedRuns"`
	Records     int64  `json:"records"`
}

type LocationHealth struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"lastUpdate"`
	AgeMinutes int       `json:"ageMinutes"`
	Stale      bool      `json:"stale"`
}

const staleThreshold = 3 * time.Hour

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := HealthStatus{Status: "ok", Locations: []LocationHealth{}, Ingest: []IngestHealth{}}
	now := s.now()

	doc, err := s.docs.Load()
	switch {
	case errors.Is(err, ErrNoDocument):
		health.Status = "degraded"
		health.Errors = append(health.Errors, err.Error())
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}

	for _, l := range s.locations {
		lh := LocationHealth{Key: l.Key, AgeMinutes: -1, Stale: true}
		if lw, ok := doc[l.Key]; ok && !lw.LastUpdate.IsZero() {
			lh.LastUpdate = lw.LastUpdate
			lh.AgeMinutes = int(now.Sub(lw.LastUpdate).Minutes())
			lh.Stale = now.Sub(lw.LastUpdate) > staleThreshold
		}
		if lh.Stale {
			health.Status = "degraded"
		}
		health.Locations = append(health.Locations, lh)
	}

	if info, err := ingest.ReadBuildInfo(filepath.Join(s.dataDir, ingest.BuildInfoFile)); err == nil {
		health.Build = &info
	} else if !errors.Is(err, fs.ErrNotExist) {
		health.Errors = append(health.Errors, "build info: "+err.Error())
	}

	if s.store != nil {
		if v, err := s.store.MigrationVersion(); err != nil {
			health.Errors = append(health.Errors, "migration version: "+err.Error())
		} else {
			health.MigrationVersion = v
		}

		if summaries, err := s.store.GetIngestHealth(1); err != nil {
			health.Errors = append(health.Errors, "ingest health: "+err.Error())
		} else {
			health.Ingest = mergeIngestHealth(summaries)
		}

		if errs, err := s.store.GetRecentIngestErrors(20); err != nil {
			health.Errors = append(health.Errors, "ingest errors: "+err.Error())
		} else {
			cutoff := now.Add(-24 * time.Hour)
			for _, e := range errs {
				if e.StartedAt.After(cutoff) {
					health.RecentErrors++
				}
			}
		}
	}

	json.NewEncoder(w).Encode(health)
}

// mergeIngestHealth folds the per-day rows into one entry per source and endpoint.
func mergeIngestHealth(summaries []store.IngestHealthSummary) []IngestHealth {
	out := []IngestHealth{}
	index := make(map[string]int)
	for _, h := range summaries {
		k := h.Source + " " + h.Endpoint
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, IngestHealth{Source: h.Source, Endpoint: h.Endpoint})
		}
		out[i].TotalRuns += h.TotalRuns
		out[i].SuccessRuns += h.SuccessRuns
		out[i].FailedRuns += h.FailedRuns
		out[i].Records += h.TotalRecords
	}
	return out
}
