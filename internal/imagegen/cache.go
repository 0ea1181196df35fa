package imagegen

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sorairo/tenki/internal/forecast"
)

const defaultMaxAge = 7 * 24 * time.Hour

// ErrInvalidCondition is returned for condition names that cannot be used as a file name.
var ErrInvalidCondition = errors.New("invalid condition name")

// Cache stores generated banners on disk, one file per condition.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates a new image cache in the specified directory.
// Images are refreshed after a week.
func NewCache(dir string) *Cache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("imagegen: create cache dir: %v", err)
	}
	return &Cache{
		dir:    dir,
		maxAge: defaultMaxAge,
	}
}

// path returns the cache file for condition. Names that could leave the
// cache directory are rejected.
func (c *Cache) path(condition forecast.WeatherCondition) (string, bool) {
	name := string(condition)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", false
	}
	return filepath.Join(c.dir, fmt.Sprintf("weather_%s.png", name)), true
}

// Get returns a cached image if it exists and is not stale.
func (c *Cache) Get(condition forecast.WeatherCondition) ([]byte, bool) {
	path, ok := c.path(condition)
	if !ok {
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores an image in the cache.
func (c *Cache) Set(condition forecast.WeatherCondition, data []byte) error {
	path, ok := c.path(condition)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCondition, condition)
	}
	return os.WriteFile(path, data, 0644)
}

// GetAny returns any cached image, stale or not.
func (c *Cache) GetAny() ([]byte, bool) {
	for _, cond := range c.List() {
		path, ok := c.path(cond)
		if !ok {
			continue
		}
		if data, err := os.ReadFile(path); err == nil {
			return data, true
		}
	}
	return nil, false
}

// List returns all cached conditions.
func (c *Cache) List() []forecast.WeatherCondition {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}

	var conditions []forecast.WeatherCondition
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "weather_") || filepath.Ext(name) != ".png" {
			continue
		}
		cond := strings.TrimSuffix(strings.TrimPrefix(name, "weather_"), ".png")
		if cond != "" {
			conditions = append(conditions, forecast.WeatherCondition(cond))
		}
	}
	return conditions
}
