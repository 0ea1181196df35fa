package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sorairo/tenki/internal/advisory"
	"github.com/sorairo/tenki/internal/metrics"
)

// statusFor maps handler errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrLocationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoDocument):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleAPIWeather(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Load()
	if err != nil {
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleAPIAdvisory(w http.ResponseWriter, r *http.Request) {
	_, lw, err := s.loadLocation(r.URL.Query().Get("location"))
	if err != nil {
		writeJSONError(w, err)
		return
	}

	report := advisory.Advise(lw, advisory.DateKey(s.now().In(s.loc)))
	metrics.AdvisoriesServed.WithLabelValues(lw.Key, string(report.Umbrella.RiskLevel)).Inc()
	writeJSON(w, http.StatusOK, report)
}

// LocationSummary is one entry of /api/locations.
type LocationSummary struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	HasAsh    bool   `json:"hasAsh"`
	Volcano   string `json:"volcano,omitempty"`
	Available bool   `json:"available"`
	Snapshots int    `json:"snapshots"`
}

// handleAPILocations lists the registered locations, falling back to the
// configured list when the store has none.
func (s *Server) handleAPILocations(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Load()
	if err != nil && !errors.Is(err, ErrNoDocument) {
		writeJSONError(w, err)
		return
	}

	locs := s.locations
	if s.store != nil {
		stored, err := s.store.GetLocations()
		if err != nil {
			writeJSONError(w, fmt.Errorf("get locations: %w", err))
			return
		}
		if len(stored) > 0 {
			locs = stored
		}
	}

	out := make([]LocationSummary, 0, len(locs))
	for _, l := range locs {
		_, ok := doc[l.Key]
		summary := LocationSummary{Key: l.Key, Name: l.Name, HasAsh: l.HasAsh, Volcano: l.Volcano, Available: ok}
		if s.store != nil {
			n, err := s.store.CountSnapshots(l.Key)
			if err != nil {
				log.Printf("api: count snapshots %s: %v", l.Key, err)
			}
			summary.Snapshots = n
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDataFile serves a generated file from the data directory without caching,
// so the page's build-info poll always sees the latest build.
func (s *Server) handleDataFile(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.dataDir, name)
		if _, err := os.Stat(path); err != nil {
			writeJSONError(w, ErrNoDocument)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, path)
	}
}
