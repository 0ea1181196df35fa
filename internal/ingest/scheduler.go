package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sorairo/tenki/internal/advisory"
	"github.com/sorairo/tenki/internal/forecast"
	"github.com/sorairo/tenki/internal/imagegen"
	"github.com/sorairo/tenki/internal/metrics"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
	"github.com/sorairo/tenki/internal/volcano"
)

// ErrNothingFetched is returned when every location failed in a fetch cycle.
// The previous document is left in place.
var ErrNothingFetched = errors.New("no location fetched successfully")

const (
	rawPayloadRetentionDays = 30
	snapshotRetentionDays   = 14
)

// Publisher uploads generated files to static hosting.
type Publisher interface {
	Publish(ctx context.Context, paths ...string) error
}

// BannerGenerator renders a banner image for a weather condition.
type BannerGenerator interface {
	Generate(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay, t time.Time) ([]byte, error)
}

type Scheduler struct {
	store           *store.Store
	owm             *OWMClient
	locations       []models.Location
	dataDir         string
	loc             *time.Location
	fetchInterval   time.Duration
	volcanoInterval time.Duration
	volcanoClient   *volcano.Client
	publisher       Publisher
	imageGen        BannerGenerator
	imageCache      *imagegen.Cache
	imageGenMu      *sync.Mutex // shared with the server so a banner is only generated once
	now             func() time.Time
}

func NewScheduler(store *store.Store, owm *OWMClient, locations []models.Location, dataDir string, loc *time.Location) *Scheduler {
	return &Scheduler{
		store:           store,
		owm:             owm,
		locations:       locations,
		dataDir:         dataDir,
		loc:             loc,
		fetchInterval:   time.Hour,
		volcanoInterval: 30 * time.Minute,
		now:             time.Now,
	}
}

// SetFetchInterval changes how often weather is fetched by Run.
func (s *Scheduler) SetFetchInterval(d time.Duration) {
	if d > 0 {
		s.fetchInterval = d
	}
}

// SetVolcanoClient configures polling of ash-fall bulletins for ash-prone locations.
func (s *Scheduler) SetVolcanoClient(client *volcano.Client) {
	s.volcanoClient = client
}

// SetPublisher configures upload of the written documents after each fetch.
func (s *Scheduler) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetImageGenerator configures banner pre-generation after each fetch.
func (s *Scheduler) SetImageGenerator(gen BannerGenerator, cache *imagegen.Cache, mu *sync.Mutex) {
	s.imageGen = gen
	s.imageCache = cache
	s.imageGenMu = mu
}

func (s *Scheduler) Run(ctx context.Context) {
	if _, err := s.FetchOnce(ctx); err != nil {
		log.Printf("scheduler: fetch: %v", err)
	}
	s.ingestAshBulletins(ctx)
	s.cleanup()

	fetchTicker := time.NewTicker(s.fetchInterval)
	volcanoTicker := time.NewTicker(s.volcanoInterval)
	imageTicker := time.NewTicker(time.Hour) // time-of-day transitions
	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer fetchTicker.Stop()
	defer volcanoTicker.Stop()
	defer imageTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-fetchTicker.C:
			if _, err := s.FetchOnce(ctx); err != nil {
				log.Printf("scheduler: fetch: %v", err)
			}
		case <-volcanoTicker.C:
			s.ingestAshBulletins(ctx)
		case <-imageTicker.C:
			s.checkWeatherImage()
		case <-cleanupTicker.C:
			s.cleanup()
		}
	}
}

// IngestOnce runs a single fetch cycle followed by an ash bulletin check.
func (s *Scheduler) IngestOnce(ctx context.Context) error {
	_, err := s.FetchOnce(ctx)
	s.ingestAshBulletins(ctx)
	return err
}

// FetchOnce fetches every location in order, writes weather.json and
// build-info.json, and publishes them when a publisher is configured.
// Failing locations are logged and left out of the document.
func (s *Scheduler) FetchOnce(ctx context.Context) (models.Document, error) {
	runID := uuid.NewString()
	log.Printf("scheduler: fetch run %s for %d locations", runID, len(s.locations))

	doc := make(models.Document, len(s.locations))
	for _, l := range s.locations {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lw, err := s.fetchLocation(ctx, runID, l)
		if err != nil {
			log.Printf("scheduler: %s: %v", l.Key, err)
			metrics.LocationsFetched.WithLabelValues(l.Key, "error").Inc()
			continue
		}
		metrics.LocationsFetched.WithLabelValues(l.Key, "ok").Inc()
		doc[l.Key] = lw

		if err := s.store.InsertSnapshot(runID, lw); err != nil {
			log.Printf("scheduler: snapshot %s: %v", l.Key, err)
		}
		s.logAdvice(lw)
	}

	if len(doc) == 0 {
		return doc, ErrNothingFetched
	}

	docPath, err := WriteDocument(s.dataDir, doc)
	if err != nil {
		return doc, err
	}
	metrics.DocumentsWritten.Inc()

	infoPath, err := WriteBuildInfo(s.dataDir, NewBuildInfo(runID, s.now()))
	if err != nil {
		return doc, err
	}
	metrics.LastFetchTimestamp.SetToCurrentTime()
	log.Printf("scheduler: wrote %s with %d locations", docPath, len(doc))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, docPath, infoPath); err != nil {
			metrics.PublishTotal.WithLabelValues("error").Inc()
			log.Printf("scheduler: publish: %v", err)
		} else {
			metrics.PublishTotal.WithLabelValues("ok").Inc()
		}
	}

	s.ensureWeatherImage(doc)
	return doc, nil
}

func (s *Scheduler) fetchLocation(ctx context.Context, runID string, l models.Location) (models.LocationWeather, error) {
	key := l.Key
	lw := models.LocationWeather{Location: l}

	run := s.startRun(runID, "owm", EndpointCurrent, &key)
	current, raw, result, err := s.owm.FetchCurrent(ctx, l)
	s.finishRun(run, "owm", EndpointCurrent, &key, result, raw, err)
	if err != nil {
		return lw, fmt.Errorf("current: %w", err)
	}

	run = s.startRun(runID, "owm", EndpointForecast, &key)
	fc, raw, result, err := s.owm.FetchForecast(ctx, l)
	s.finishRun(run, "owm", EndpointForecast, &key, result, raw, err)
	if err != nil {
		return lw, fmt.Errorf("forecast: %w", err)
	}

	lw.Current = ConvertCurrent(current, s.loc)
	lw.Forecast = ConvertForecast(fc, s.loc)
	lw.LastUpdate = s.now().In(s.loc)

	if flags := ValidateWeather(lw); len(flags) > 0 {
		log.Printf("scheduler: %s: quality flags %v", l.Key, flags)
	}
	return lw, nil
}

func (s *Scheduler) startRun(runID, source, endpoint string, key *string) *store.IngestRun {
	run, err := s.store.StartIngestRun(runID, source, endpoint, key)
	if err != nil {
		log.Printf("scheduler: start ingest run: %v", err)
		return nil
	}
	return run
}

func (s *Scheduler) finishRun(run *store.IngestRun, source, endpoint string, key *string, result *FetchResult, raw []byte, err error) {
	if run == nil {
		return
	}

	run.Success = err == nil
	if result != nil {
		run.HTTPStatus = sql.NullInt64{Int64: int64(result.HTTPStatus), Valid: result.HTTPStatus > 0}
		run.ResponseSizeBytes = sql.NullInt64{Int64: int64(result.ResponseSize), Valid: result.ResponseSize > 0}
		run.RecordsParsed = sql.NullInt64{Int64: int64(result.RecordCount), Valid: true}
	}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}

	if len(raw) > 0 {
		if _, err := s.store.StoreRawPayload(&run.ID, source, endpoint, key, raw); err != nil {
			log.Printf("scheduler: store raw payload %s: %v", endpoint, err)
		}
	}

	if err := s.store.CompleteIngestRun(run); err != nil {
		log.Printf("scheduler: complete ingest run: %v", err)
	}
}

func (s *Scheduler) logAdvice(lw models.LocationWeather) {
	r := advisory.Advise(lw, advisory.DateKey(s.now().In(s.loc)))
	msg := fmt.Sprintf("scheduler: %s: %.1f°C, %s, umbrella %s, pressure %s",
		lw.Key, lw.Current.Temp, r.Clothing, r.Umbrella.RiskLevel, r.Pressure.RiskLevel)
	if r.Ash != nil {
		msg += fmt.Sprintf(", ash %s", r.Ash.RiskLevel)
	}
	log.Print(msg)
}

func (s *Scheduler) ingestAshBulletins(ctx context.Context) {
	if s.volcanoClient == nil {
		return
	}

	seen := make(map[string]bool)
	for _, l := range s.locations {
		if !l.HasAsh || l.Volcano == "" || seen[l.Volcano] {
			continue
		}
		seen[l.Volcano] = true

		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		run := s.startRun(uuid.NewString(), "jma", "feed/extra", nil)
		bulletins, raw, err := s.volcanoClient.Fetch(fetchCtx, l.Volcano)
		cancel()
		s.finishRun(run, "jma", "feed/extra", nil, &FetchResult{ResponseSize: len(raw), RecordCount: len(bulletins)}, raw, err)
		if err != nil {
			log.Printf("scheduler: fetch ash bulletins for %s: %v", l.Volcano, err)
			continue
		}

		now := s.now()
		added := 0
		for _, b := range bulletins {
			isNew, err := s.store.UpsertAshBulletin(b, now)
			if err != nil {
				log.Printf("scheduler: upsert ash bulletin %s: %v", b.ID, err)
				continue
			}
			if isNew {
				added++
				metrics.AshBulletinsSeen.WithLabelValues(l.Volcano).Inc()
			}
		}
		if added > 0 {
			log.Printf("scheduler: stored %d new ash bulletins for %s", added, l.Volcano)
		}
	}
}

// checkWeatherImage re-checks the banner for the latest stored document.
// Called hourly to handle dawn/day/dusk/night transitions.
func (s *Scheduler) checkWeatherImage() {
	if s.imageGen == nil || s.imageCache == nil {
		return
	}

	doc, err := s.store.GetLatestDocument()
	if err != nil {
		log.Printf("scheduler: load document for image check: %v", err)
		return
	}
	s.ensureWeatherImage(doc)
}

// ensureWeatherImage pre-generates the banner for the first location's
// current condition at the current time of day.
func (s *Scheduler) ensureWeatherImage(doc models.Document) {
	if s.imageGen == nil || s.imageCache == nil {
		return
	}

	keys := doc.Keys(s.locations)
	if len(keys) == 0 {
		return
	}
	lw := doc[keys[0]]

	now := s.now().In(s.loc)
	tod := forecast.GetTimeOfDay(now)
	baseCondition := forecast.ExtractCondition(lw.Current.ForecastPoint)
	condition := forecast.ConditionWithTime(baseCondition, tod)

	if _, ok := s.imageCache.Get(condition); ok {
		return
	}

	go func() {
		if s.imageGenMu != nil {
			s.imageGenMu.Lock()
			defer s.imageGenMu.Unlock()
		}

		// Double-check after acquiring the lock.
		if _, ok := s.imageCache.Get(condition); ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		log.Printf("scheduler: pre-generating weather image for %s", condition)
		data, err := s.imageGen.Generate(ctx, baseCondition, tod, now)
		if err != nil {
			log.Printf("scheduler: image generation failed: %v", err)
			return
		}
		if err := s.imageCache.Set(condition, data); err != nil {
			log.Printf("scheduler: cache image: %v", err)
			return
		}
		log.Printf("scheduler: cached weather image for %s", condition)
	}()
}

func (s *Scheduler) cleanup() {
	if n, err := s.store.CleanupOldRawPayloads(rawPayloadRetentionDays); err != nil {
		log.Printf("scheduler: cleanup raw payloads: %v", err)
	} else if n > 0 {
		log.Printf("scheduler: removed %d raw payloads", n)
	}
	if n, err := s.store.CleanupOldSnapshots(snapshotRetentionDays); err != nil {
		log.Printf("scheduler: cleanup snapshots: %v", err)
	} else if n > 0 {
		log.Printf("scheduler: removed %d snapshots", n)
	}
}
