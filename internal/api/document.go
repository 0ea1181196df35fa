package api

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sorairo/tenki/internal/ingest"
	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/store"
)

// DocumentLoader reads weather.json, re-reading it only when its mtime changes.
// When the file does not exist yet it falls back to the latest stored snapshots.
type DocumentLoader struct {
	path  string
	store *store.Store

	mu      sync.Mutex
	doc     models.Document
	modTime time.Time
}

func NewDocumentLoader(path string, store *store.Store) *DocumentLoader {
	return &DocumentLoader{path: path, store: store}
}

// Load returns the current document, or ErrNoDocument if there is none.
func (l *DocumentLoader) Load() (models.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return l.loadFromStore()
	}
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}

	if l.doc != nil && info.ModTime().Equal(l.modTime) {
		return l.doc, nil
	}

	doc, err := ingest.ReadDocument(l.path)
	if err != nil {
		return nil, err
	}
	l.doc = doc
	l.modTime = info.ModTime()
	return doc, nil
}

func (l *DocumentLoader) loadFromStore() (models.Document, error) {
	if l.store == nil {
		return nil, ErrNoDocument
	}
	doc, err := l.store.GetLatestDocument()
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	if len(doc) == 0 {
		return nil, ErrNoDocument
	}
	return doc, nil
}

// lookupLocation resolves key against the document. An empty key selects the
// first configured location present in the document.
func (s *Server) lookupLocation(doc models.Document, key string) (models.LocationWeather, error) {
	keys := doc.Keys(s.locations)
	if len(keys) == 0 {
		return models.LocationWeather{}, ErrNoDocument
	}
	if strings.TrimSpace(key) == "" {
		return doc[keys[0]], nil
	}
	lw, ok := doc.Lookup(key)
	if !ok {
		return lw, fmt.Errorf("%w: %q (available: %s)", ErrLocationNotFound, key, strings.Join(keys, ", "))
	}
	return lw, nil
}

// loadLocation loads the document and resolves key in one step.
func (s *Server) loadLocation(key string) (models.Document, models.LocationWeather, error) {
	doc, err := s.docs.Load()
	if err != nil {
		return nil, models.LocationWeather{}, err
	}
	lw, err := s.lookupLocation(doc, key)
	return doc, lw, err
}
