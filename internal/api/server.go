package api

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sorairo/tenki/internal/forecast"
	"github.com/sorairo/tenki/internal/imagegen"
	"github.com/sorairo/tenki/internal/ingest"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
)

var (
	// ErrLocationNotFound is returned for a location key missing from the document.
	ErrLocationNotFound = errors.New("location not found")
	// ErrNoDocument is returned when no weather document has been written yet.
	ErrNoDocument = errors.New("weather document not available")
)

// BannerGenerator renders a banner image for a weather condition.
type BannerGenerator interface {
	Generate(ctx context.Context, condition forecast.WeatherCondition, tod forecast.TimeOfDay, t time.Time) ([]byte, error)
}

type Server struct {
	store        *store.Store
	docs         *DocumentLoader
	locations    []models.Location
	dataDir      string
	port         string
	loc          *time.Location
	tmpl         *template.Template
	imageCache   *imagegen.Cache
	imageGen     BannerGenerator
	genMu        sync.Mutex // prevents concurrent generation of the same banner
	ogImageCache *imagegen.OGImageCache
	now          func() time.Time
}

func NewServer(store *store.Store, locations []models.Location, dataDir, port string, loc *time.Location) *Server {
	return &Server{
		store:        store,
		docs:         NewDocumentLoader(filepath.Join(dataDir, ingest.DocumentFile), store),
		locations:    locations,
		dataDir:      dataDir,
		port:         port,
		loc:          loc,
		tmpl:         newTemplates(),
		imageCache:   imagegen.NewCache(filepath.Join(dataDir, "images")),
		ogImageCache: imagegen.NewOGImageCache(5 * time.Minute),
		now:          time.Now,
	}
}

// SetImageGenerator enables on-demand banner generation.
func (s *Server) SetImageGenerator(gen BannerGenerator) {
	s.imageGen = gen
}

// SetImageCache replaces the banner cache, e.g. to share it with the scheduler.
func (s *Server) SetImageCache(c *imagegen.Cache) {
	s.imageCache = c
}

// ImageCache returns the image cache for use by the scheduler.
func (s *Server) ImageCache() *imagegen.Cache {
	return s.imageCache
}

// ImageGenMutex returns the mutex coordinating banner generation between
// the HTTP handlers and the scheduler.
func (s *Server) ImageGenMutex() *sync.Mutex {
	return &s.genMu
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/weather-image", s.handleWeatherImage)
	mux.HandleFunc("/og-image.png", s.handleOGImage)
	mux.HandleFunc("/api/weather", s.handleAPIWeather)
	mux.HandleFunc("/api/advisory", s.handleAPIAdvisory)
	mux.HandleFunc("/api/locations", s.handleAPILocations)
	mux.HandleFunc("/data/"+ingest.DocumentFile, s.handleDataFile(ingest.DocumentFile))
	mux.HandleFunc("/data/"+ingest.BuildInfoFile, s.handleDataFile(ingest.BuildInfoFile))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
