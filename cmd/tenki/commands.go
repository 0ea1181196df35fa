package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sorairo/tenki/internal/advisory"
	"github.com/sorairo/tenki/internal/api"
	"github.com/sorairo/tenki/internal/imagegen"
	"github.com/sorairo/tenki/internal/ingest"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
	"github.com/sorairo/tenki/internal/volcano"
)

type ServeCmd struct {
	FTPFlags

	Port         string        `env:"PORT" default:"8080" help:"HTTP server port."`
	NoPoll       bool          `name:"no-poll" help:"Disable polling (server only, for local dev)."`
	Interval     time.Duration `default:"1h" help:"Fetch interval."`
	OWMAPIKey    string        `name:"owm-api-key" env:"OPENWEATHER_API_KEY" help:"OpenWeatherMap API key."`
	OpenAIAPIKey string        `name:"openai-api-key" env:"OPENAI_API_KEY" help:"OpenAI API key for banner images (optional)."`
}

func (c *ServeCmd) Run(g *Globals) error {
	if c.OWMAPIKey == "" && !c.NoPoll {
		return errors.New("OPENWEATHER_API_KEY environment variable required (or pass --no-poll)")
	}

	loc := g.location()
	st, closeDB, err := g.openStore(loc)
	if err != nil {
		return err
	}
	defer closeDB()

	server := api.NewServer(st, defaultLocations, g.DataDir, c.Port, loc)

	var gen *imagegen.Generator
	if c.OpenAIAPIKey != "" {
		gen, err = imagegen.NewGenerator(c.OpenAIAPIKey)
		if err != nil {
			return fmt.Errorf("image generator: %w", err)
		}
		server.SetImageGenerator(gen)
	} else {
		log.Println("OPENAI_API_KEY not set, banner generation disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoPoll {
		scheduler := newScheduler(st, c.OWMAPIKey, g.DataDir, loc, c.FTPFlags)
		scheduler.SetFetchInterval(c.Interval)
		// Share the cache and mutex with the server so a banner is only generated once
		if gen != nil {
			scheduler.SetImageGenerator(gen, server.ImageCache(), server.ImageGenMutex())
		}
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type FetchCmd struct {
	FTPFlags

	OWMAPIKey string `name:"owm-api-key" env:"OPENWEATHER_API_KEY" required:"" help:"OpenWeatherMap API key."`
}

func (c *FetchCmd) Run(g *Globals) error {
	loc := g.location()
	st, closeDB, err := g.openStore(loc)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("running single fetch")
	if err := newScheduler(st, c.OWMAPIKey, g.DataDir, loc, c.FTPFlags).IngestOnce(ctx); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	log.Println("done")
	return nil
}

type AdviseCmd struct {
	Location string `short:"l" default:"" help:"Location key (defaults to the first location)."`
}

func (c *AdviseCmd) Run(g *Globals) error {
	loc := g.location()

	doc, err := ingest.ReadDocument(filepath.Join(g.DataDir, ingest.DocumentFile))
	if errors.Is(err, fs.ErrNotExist) {
		st, closeDB, serr := g.openStore(loc)
		if serr != nil {
			return serr
		}
		defer closeDB()
		doc, err = st.GetLatestDocument()
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	keys := doc.Keys(defaultLocations)
	if len(keys) == 0 {
		return errors.New("no weather document available, run `tenki fetch` first")
	}
	key := c.Location
	if key == "" {
		key = keys[0]
	}
	lw, ok := doc.Lookup(key)
	if !ok {
		return fmt.Errorf("location %q not found (available: %s)", key, strings.Join(keys, ", "))
	}

	report := advisory.Advise(lw, advisory.DateKey(time.Now().In(loc)))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type BuildInfoCmd struct{}

func (c *BuildInfoCmd) Run(g *Globals) error {
	path, err := ingest.WriteBuildInfo(g.DataDir, ingest.NewBuildInfo(uuid.NewString(), time.Now()))
	if err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}

func newScheduler(st *store.Store, apiKey, dataDir string, loc *time.Location, ftp FTPFlags) *ingest.Scheduler {
	scheduler := ingest.NewScheduler(st, ingest.NewOWMClient(apiKey), defaultLocations, dataDir, loc)
	if hasAshLocation(defaultLocations) {
		scheduler.SetVolcanoClient(volcano.NewExtraClient())
	}
	if p := ftp.publisher(); p != nil {
		scheduler.SetPublisher(p)
	}
	return scheduler
}

func hasAshLocation(locs []models.Location) bool {
	for _, l := range locs {
		if l.HasAsh {
			return true
		}
	}
	return false
}
