package ingest

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
	"github.com/sorairo/tenki/internal/volcano"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db, tokyo(t))
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

type recordingPublisher struct {
	paths []string
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, paths ...string) error {
	p.paths = append(p.paths, paths...)
	return p.err
}

var testOsaka = models.Location{Key: "osaka-taisho", Name: "大阪市大正区", Lat: 34.6658, Lon: 135.4692}

// newOWMServer serves fixtures for Kagoshima and 404s for every other location.
func newOWMServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") != "31.5969" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"cod":"404","message":"city not found"}`))
			return
		}
		switch r.URL.Path {
		case "/" + EndpointCurrent:
			w.Write([]byte(testCurrentJSON))
		case "/" + EndpointForecast:
			w.Write([]byte(testForecastJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScheduler_FetchOnce(t *testing.T) {
	st := setupTestStore(t)
	for _, l := range []models.Location{testOsaka, testKagoshima} {
		if err := st.UpsertLocation(l); err != nil {
			t.Fatal(err)
		}
	}

	srv := newOWMServer(t)
	dir := t.TempDir()
	sched := NewScheduler(st, newTestOWMClient(srv.URL), []models.Location{testOsaka, testKagoshima}, dir, tokyo(t))
	pub := &recordingPublisher{}
	sched.SetPublisher(pub)

	doc, err := sched.FetchOnce(context.Background())
	if err != nil {
		t.Fatalf("FetchOnce: %v", err)
	}

	if _, ok := doc["osaka-taisho"]; ok {
		t.Error("failing location should be skipped")
	}
	lw, ok := doc["kagoshima"]
	if !ok {
		t.Fatal("kagoshima missing from document")
	}
	if lw.Current.Temp != 24.4 || len(lw.Forecast) != 3 {
		t.Errorf("kagoshima = %+v", lw)
	}
	if lw.Forecast[0].Time.Location().String() != "Asia/Tokyo" {
		t.Errorf("forecast zone = %v", lw.Forecast[0].Time.Location())
	}

	written, err := ReadDocument(filepath.Join(dir, DocumentFile))
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if len(written) != 1 {
		t.Errorf("written document has %d locations, want 1", len(written))
	}

	info, err := ReadBuildInfo(filepath.Join(dir, BuildInfoFile))
	if err != nil {
		t.Fatalf("ReadBuildInfo: %v", err)
	}
	if info.RunID == "" || info.Timestamp == 0 {
		t.Errorf("build info = %+v", info)
	}

	if len(pub.paths) != 2 {
		t.Errorf("published %v, want document and build info", pub.paths)
	}

	stored, err := st.GetLatestDocument()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stored["kagoshima"]; !ok {
		t.Error("snapshot not stored")
	}

	errs, err := st.GetRecentIngestErrors(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].LocationKey.String != "osaka-taisho" {
		t.Errorf("ingest errors = %+v, want one for osaka-taisho", errs)
	}
	if errs[0].RunID != info.RunID {
		t.Errorf("error run id = %q, want %q", errs[0].RunID, info.RunID)
	}
}

func TestScheduler_FetchOnce_AllFail(t *testing.T) {
	st := setupTestStore(t)
	srv := newOWMServer(t)
	dir := t.TempDir()

	sched := NewScheduler(st, newTestOWMClient(srv.URL), []models.Location{testOsaka}, dir, tokyo(t))
	if _, err := sched.FetchOnce(context.Background()); !errors.Is(err, ErrNothingFetched) {
		t.Fatalf("err = %v, want ErrNothingFetched", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DocumentFile)); !os.IsNotExist(err) {
		t.Error("document should not be written when nothing was fetched")
	}
}

func TestScheduler_PublishErrorDoesNotFail(t *testing.T) {
	st := setupTestStore(t)
	if err := st.UpsertLocation(testKagoshima); err != nil {
		t.Fatal(err)
	}
	srv := newOWMServer(t)

	sched := NewScheduler(st, newTestOWMClient(srv.URL), []models.Location{testKagoshima}, t.TempDir(), tokyo(t))
	sched.SetPublisher(&recordingPublisher{err: errors.New("ftp down")})

	if _, err := sched.FetchOnce(context.Background()); err != nil {
		t.Fatalf("FetchOnce: %v", err)
	}
}

const testAshFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>降灰予報（定時）</title>
    <id>urn:uuid:aaaa</id>
    <updated>2026-10-19T05:00:00Z</updated>
    <author><name>鹿児島地方気象台</name></author>
    <link type="application/xml" href="https://www.data.jma.go.jp/a.xml"/>
    <content type="text">【桜島　降灰予報（定時）】</content>
  </entry>
</feed>`

func TestScheduler_IngestAshBulletins(t *testing.T) {
	st := setupTestStore(t)
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testAshFeed))
	}))
	defer feed.Close()

	sched := NewScheduler(st, nil, []models.Location{testOsaka, testKagoshima}, t.TempDir(), tokyo(t))
	sched.SetVolcanoClient(volcano.NewClient(feed.URL))
	sched.now = func() time.Time { return time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC) }

	sched.ingestAshBulletins(context.Background())
	sched.ingestAshBulletins(context.Background())

	got, err := st.GetRecentAshBulletins("桜島", time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len(bulletins) = %d, want 1", len(got))
	}
	if got[0].ID != "urn:uuid:aaaa" {
		t.Errorf("ID = %q", got[0].ID)
	}
}
