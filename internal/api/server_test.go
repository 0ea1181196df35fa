package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sorairo/tenki/internal/advisory"
	"github.com/sorairo/tenki/internal/forecast"
	"github.com/sorairo/tenki/internal/api"
	"github.com/sorairo/tenki/internal/ingest"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
	"github.com/sorairo/tenki/internal/volcano"

	_ "modernc.org/sqlite"
)

type countingGenerator struct {
	calls atomic.Int32
}

func (g *countingGenerator) Generate(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay, t time.Time) ([]byte, error) {
	g.calls.Add(1)
	return []byte("generated " + string(forecast.ConditionWithTime(condition, tod))), nil
}

var testLocations = []models.Location{
	{Key: "osaka-taisho", Name: "大阪市大正区", Lat: 34.6658, Lon: 135.4692},
	{Key: "kobe-sannomiya", Name: "神戸市三宮", Lat: 34.6937, Lon: 135.1955},
	{Key: "kagoshima", Name: "鹿児島市", Lat: 31.5969, Lon: 130.5571, HasAsh: true, Volcano: "桜島"},
}

func setupTestStore(t *testing.T) (*store.Store, *time.Location) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	s := store.New(db, loc)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	for _, l := range testLocations {
		if err := s.UpsertLocation(l); err != nil {
			t.Fatal(err)
		}
	}
	return s, loc
}

func testDocument(loc *time.Location) models.Document {
	now := time.Now().In(loc).Truncate(time.Hour)
	rainy := models.LocationWeather{
		Location: testLocations[0],
		Current: models.CurrentConditions{ForecastPoint: models.ForecastPoint{
			Time: now, Temp: 21.5, Pressure: 1002, Category: models.CategoryRain, Icon: "10d",
			Description: "小雨", Wind: models.Wind{Speed: 3, Deg: 200},
		}},
		Forecast: models.ForecastSeries{
			{Time: now.Add(3 * time.Hour), Temp: 20, Pop: 0.9, Category: models.CategoryRain, Icon: "10d"},
			{Time: now.Add(6 * time.Hour), Temp: 19, Pop: 0.4, Category: models.CategoryClouds, Icon: "04d"},
		},
		LastUpdate: now,
	}
	ashy := models.LocationWeather{
		Location: testLocations[2],
		Current: models.CurrentConditions{ForecastPoint: models.ForecastPoint{
			Time: now, Temp: 26, Pressure: 1016, Category: models.CategoryClear, Icon: "01d",
			Description: "晴天", Wind: models.Wind{Speed: 6.2, Deg: 90},
		}},
		Forecast: models.ForecastSeries{
			{Time: now.Add(3 * time.Hour), Temp: 25, Pressure: 1016, Category: models.CategoryClear, Icon: "01d"},
		},
		LastUpdate: now,
	}
	return models.Document{rainy.Key: rainy, ashy.Key: ashy}
}

func newTestServer(t *testing.T, withDocument bool) (*api.Server, *store.Store, string) {
	t.Helper()
	s, loc := setupTestStore(t)
	dir := t.TempDir()
	if withDocument {
		if _, err := ingest.WriteDocument(dir, testDocument(loc)); err != nil {
			t.Fatal(err)
		}
		if _, err := ingest.WriteBuildInfo(dir, ingest.NewBuildInfo("run-1", time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	return api.NewServer(s, testLocations, dir, "8080", loc), s, dir
}

func get(t *testing.T, srv *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, st, _ := newTestServer(t, true)

	key := "osaka-taisho"
	for _, ok := range []bool{true, true, false} {
		run, err := st.StartIngestRun("run-1", "owm", ingest.EndpointCurrent, &key)
		if err != nil {
			t.Fatal(err)
		}
		run.Success = ok
		if !ok {
			run.ErrorMessage = sql.NullString{String: "HTTP 429", Valid: true}
		}
		if err := st.CompleteIngestRun(run); err != nil {
			t.Fatal(err)
		}
	}

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	// kobe-sannomiya is missing from the document
	if health.Status != "degraded" {
		t.Errorf("status = %q, want degraded", health.Status)
	}
	if len(health.Locations) != 3 {
		t.Fatalf("len(locations) = %d, want 3", len(health.Locations))
	}
	if health.Locations[0].Stale {
		t.Error("osaka-taisho should be fresh")
	}
	if !health.Locations[1].Stale {
		t.Error("kobe-sannomiya should be stale")
	}
	if health.Build == nil || health.Build.RunID != "run-1" {
		t.Errorf("build = %+v, want run-1", health.Build)
	}
	if health.MigrationVersion == 0 {
		t.Error("expected migration version")
	}
	if len(health.Ingest) != 1 {
		t.Fatalf("ingest = %+v, want one source", health.Ingest)
	}
	ih := health.Ingest[0]
	if ih.Source != "owm" || ih.Endpoint != ingest.EndpointCurrent || ih.TotalRuns != 3 || ih.SuccessRuns != 2 || ih.FailedRuns != 1 {
		t.Errorf("ingest[0] = %+v", ih)
	}
	if health.RecentErrors != 1 {
		t.Errorf("recentErrors = %d, want 1", health.RecentErrors)
	}
}

func TestHealthEndpoint_NoDocument(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, false)

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "degraded" {
		t.Errorf("status = %q, want degraded", health.Status)
	}
	if health.Build != nil {
		t.Errorf("build = %+v, want none", health.Build)
	}
	if len(health.Ingest) != 0 {
		t.Errorf("ingest = %+v, want none", health.Ingest)
	}
}

func TestIndexPage_DefaultLocation(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "<title>大阪市大正区 - tenki</title>") {
		t.Error("expected first configured location to be selected")
	}
	if !strings.Contains(body, "rain expected at") {
		t.Error("expected umbrella advice")
	}
	if !strings.Contains(body, "low pressure warning") {
		t.Error("expected pressure advice")
	}
	if strings.Contains(body, "Volcanic ash") {
		t.Error("ash card should only show for ash-prone locations")
	}
	if !strings.Contains(body, `class="active"`) {
		t.Error("expected active tab")
	}
}

func TestIndexPage_AshLocation(t *testing.T) {
	t.Parallel()
	srv, st, _ := newTestServer(t, true)

	_, err := st.UpsertAshBulletin(volcano.Bulletin{
		ID:      "urn:uuid:1",
		Title:   "降灰予報（定時）",
		Volcano: "桜島",
		Office:  "鹿児島地方気象台",
		Issued:  time.Now().Add(-time.Hour),
		Summary: "鹿児島市に降灰",
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	w := get(t, srv, "/?location=KAGOSHIMA")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "Volcanic ash") {
		t.Error("expected ash card")
	}
	if !strings.Contains(body, "east wind at 6.2 m/s") {
		t.Error("expected east wind ash message")
	}
	if !strings.Contains(body, "降灰予報（定時）") {
		t.Error("expected ash bulletin")
	}
	if !strings.Contains(body, "long-sleeve shirt") {
		t.Error("expected clothing advice for 26°C")
	}
}

func TestIndexPage_UnknownLocation(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/?location=sapporo")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "osaka-taisho, kagoshima") {
		t.Errorf("expected available keys in body, got %s", body)
	}
}

func TestIndexPage_NoDocument(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, false)

	w := get(t, srv, "/")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestIndexPage_FallsBackToSnapshots(t *testing.T) {
	t.Parallel()
	srv, st, _ := newTestServer(t, false)

	loc, _ := time.LoadLocation("Asia/Tokyo")
	doc := testDocument(loc)
	if err := st.InsertSnapshot("run-1", doc["kagoshima"]); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv, "/")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "鹿児島市") {
		t.Error("expected snapshot location")
	}
}

func TestIndexPage_NotFoundPath(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	if w := get(t, srv, "/nope"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAPIAdvisory(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/api/advisory?location=kagoshima")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var report advisory.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Key != "kagoshima" {
		t.Errorf("key = %q", report.Key)
	}
	if report.Ash == nil || report.Ash.RiskLevel != advisory.RiskHigh {
		t.Errorf("ash = %+v, want high", report.Ash)
	}
	if report.Umbrella.Message != advisory.UmbrellaNotNeeded {
		t.Errorf("umbrella = %q", report.Umbrella.Message)
	}
	if report.Pressure.RiskLevel != advisory.RiskLow {
		t.Errorf("pressure = %+v", report.Pressure)
	}
}

func TestAPIAdvisory_UnknownLocation(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/api/advisory?location=tokyo")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "location not found") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAPIWeather(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/api/weather")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if len(doc) != 2 {
		t.Errorf("len(doc) = %d, want 2", len(doc))
	}
}

func TestAPIWeather_ReloadsOnChange(t *testing.T) {
	t.Parallel()
	srv, _, dir := newTestServer(t, true)

	if w := get(t, srv, "/api/weather"); w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	loc, _ := time.LoadLocation("Asia/Tokyo")
	doc := testDocument(loc)
	delete(doc, "kagoshima")
	path, err := ingest.WriteDocument(dir, doc)
	if err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv, "/api/weather")
	var got models.Document
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("len(doc) = %d after rewrite, want 1", len(got))
	}
}

func TestAPILocations(t *testing.T) {
	t.Parallel()
	srv, st, _ := newTestServer(t, true)

	loc, _ := time.LoadLocation("Asia/Tokyo")
	if err := st.InsertSnapshot("run-1", testDocument(loc)["kagoshima"]); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv, "/api/locations")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var locs []api.LocationSummary
	if err := json.NewDecoder(w.Body).Decode(&locs); err != nil {
		t.Fatal(err)
	}
	if len(locs) != 3 {
		t.Fatalf("len(locs) = %d, want 3", len(locs))
	}
	if !locs[0].Available || locs[1].Available || !locs[2].HasAsh {
		t.Errorf("locs = %+v", locs)
	}
	if locs[2].Volcano != "桜島" || locs[2].Snapshots != 1 || locs[0].Snapshots != 0 {
		t.Errorf("kagoshima = %+v, osaka = %+v", locs[2], locs[0])
	}
}

func TestAPILocations_FromStore(t *testing.T) {
	t.Parallel()
	srv, st, _ := newTestServer(t, true)

	extra := models.Location{Key: "naha", Name: "那覇市", Lat: 26.2124, Lon: 127.6809}
	if err := st.UpsertLocation(extra); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv, "/api/locations")
	var locs []api.LocationSummary
	if err := json.NewDecoder(w.Body).Decode(&locs); err != nil {
		t.Fatal(err)
	}
	if len(locs) != 4 || locs[3].Key != "naha" || locs[3].Available {
		t.Errorf("locs = %+v", locs)
	}
}

func TestDataFiles(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/data/build-info.json")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
	if !strings.Contains(w.Body.String(), `"runId": "run-1"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	if w := get(t, srv, "/data/weather.json"); w.Code != 200 {
		t.Errorf("weather.json: expected 200, got %d", w.Code)
	}
}

func TestDataFiles_Missing(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, false)

	if w := get(t, srv, "/data/weather.json"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestOGImage_Fallback(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/og-image.png?location=kagoshima")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Error("expected PNG body")
	}
}

func TestWeatherImage_CachedBanner(t *testing.T) {
	t.Parallel()
	srv, _, dir := newTestServer(t, true)

	if err := os.WriteFile(filepath.Join(dir, "images", "weather_storm_night.png"), []byte("banner"), 0644); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv, "/weather-image?weather=storm_night")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "banner" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestWeatherImage_Unavailable(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	if w := get(t, srv, "/weather-image"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	get(t, srv, "/api/advisory?location=kagoshima")
	w := get(t, srv, "/metrics")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tenki_advisories_served_total") {
		t.Error("expected advisory counter in metrics output")
	}
}

func TestWeatherImage_Override(t *testing.T) {
	t.Parallel()
	srv, _, dir := newTestServer(t, true)
	gen := &countingGenerator{}
	srv.SetImageGenerator(gen)

	w := get(t, srv, "/weather-image?weather=storm_night")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "generated storm_night" {
		t.Errorf("body = %q", w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "images", "weather_storm_night.png")); err != nil {
		t.Errorf("expected cached banner: %v", err)
	}

	// cached now, no second generation
	get(t, srv, "/weather-image?weather=storm_night")
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generator calls = %d, want 1", n)
	}
}

func TestWeatherImage_RejectsUnknownOverride(t *testing.T) {
	t.Parallel()
	srv, _, dir := newTestServer(t, true)
	gen := &countingGenerator{}
	srv.SetImageGenerator(gen)

	for _, override := range []string{"x/../../../escaped", "../weather_storm", "sunny", "storm_midnight"} {
		w := get(t, srv, "/weather-image?weather="+url.QueryEscape(override))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", override, w.Code)
		}
	}
	if n := gen.calls.Load(); n != 0 {
		t.Errorf("generator calls = %d, want 0", n)
	}

	parent := filepath.Dir(dir)
	matches, err := filepath.Glob(filepath.Join(parent, "escaped*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("files written outside the data dir: %v", matches)
	}
}

func TestIndexPage_IgnoresUnknownOverride(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, true)

	w := get(t, srv, "/?weather="+url.QueryEscape("x/../../escaped"))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "escaped") {
		t.Error("unknown override should not reach the banner URL")
	}

	w = get(t, srv, "/?weather=storm_night")
	if !strings.Contains(w.Body.String(), "weather=storm_night") {
		t.Error("known override should be passed to the banner URL")
	}
}
