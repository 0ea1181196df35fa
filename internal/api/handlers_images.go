package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sorairo/tenki/internal/advisory"
	"github.com/sorairo/tenki/internal/forecast"
	"github.com/sorairo/tenki/internal/imagegen"
	"github.com/sorairo/tenki/internal/models"
)

// currentCondition returns the banner condition for a location, or clear_cool
// when no document is available.
func (s *Server) currentCondition(key string) (forecast.WeatherCondition, *models.LocationWeather) {
	_, lw, err := s.loadLocation(key)
	if err != nil {
		return forecast.ConditionClearCool, nil
	}
	return forecast.ExtractCondition(lw.Current.ForecastPoint), &lw
}

// handleWeatherImage serves the banner for the selected location's current condition.
// It checks the cache first, falls back to any cached image while generating
// the right one in the background, and generates synchronously when nothing is cached.
// Supports ?weather=condition_time to preview another banner (e.g. ?weather=storm_night);
// unknown conditions get a 400.
func (s *Server) handleWeatherImage(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.loc)
	tod := forecast.GetTimeOfDay(now)
	baseCondition, _ := s.currentCondition(r.URL.Query().Get("location"))
	hasOverride := false

	if override := r.URL.Query().Get("weather"); override != "" {
		c, t, ok := forecast.ParseOverride(override, tod)
		if !ok {
			http.Error(w, "Unknown weather condition", http.StatusBadRequest)
			return
		}
		baseCondition, tod, hasOverride = c, t, true
	}

	condition := forecast.ConditionWithTime(baseCondition, tod)

	if data, ok := s.imageCache.Get(condition); ok {
		serveImage(w, data, 3600)
		return
	}

	if !hasOverride {
		if data, ok := s.imageCache.GetAny(); ok {
			go s.generateAndCache(baseCondition, tod, now)
			serveImage(w, data, 3600)
			return
		}
	}

	if s.imageGen == nil {
		log.Printf("api: weather-image: no generator and no cached images")
		http.Error(w, "Weather image service unavailable", http.StatusServiceUnavailable)
		return
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	if data, ok := s.imageCache.Get(condition); ok {
		serveImage(w, data, 3600)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	data, err := s.imageGen.Generate(ctx, baseCondition, tod, now)
	if err != nil {
		log.Printf("api: banner generation failed: %v", err)
		http.Error(w, "Image generation failed", http.StatusServiceUnavailable)
		return
	}
	if err := s.imageCache.Set(condition, data); err != nil {
		log.Printf("api: cache banner: %v", err)
	}
	serveImage(w, data, 3600)
}

func serveImage(w http.ResponseWriter, data []byte, maxAge int) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	w.Write(data)
}

// handleOGImage serves an Open Graph card for the selected location.
func (s *Server) handleOGImage(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("location")
	baseCondition, lw := s.currentCondition(key)

	cacheKey := key
	if lw != nil {
		cacheKey = lw.Key
	}
	if data, ok := s.ogImageCache.Get(cacheKey); ok {
		serveImage(w, data, 300)
		return
	}

	ogData := imagegen.OGImageData{Condition: conditionToReadable(baseCondition)}
	if lw != nil {
		ogData.Title = imagegen.RomanizeKey(lw.Key)
		ogData.Temperature = lw.Current.Temp
		u := advisory.CheckUmbrella(lw.Forecast)
		ogData.Advice = "Umbrella: " + u.Message
	}

	now := s.now().In(s.loc)
	condition := forecast.ConditionWithTime(baseCondition, forecast.GetTimeOfDay(now))

	var ogImage []byte
	var err error
	if banner, ok := s.imageCache.Get(condition); ok {
		ogImage, err = imagegen.GenerateOGImage(banner, ogData)
	} else if banner, ok := s.imageCache.GetAny(); ok {
		ogImage, err = imagegen.GenerateOGImage(banner, ogData)
	} else {
		ogImage, err = imagegen.GenerateFallbackOGImage(ogData)
	}
	if err != nil {
		log.Printf("api: og-image: %v", err)
		http.Error(w, "Failed to generate OG image", http.StatusInternalServerError)
		return
	}

	s.ogImageCache.Set(cacheKey, ogImage)
	serveImage(w, ogImage, 300)
}

func (s *Server) generateAndCache(baseCondition forecast.WeatherCondition, tod forecast.TimeOfDay, t time.Time) {
	if s.imageGen == nil {
		return
	}

	condition := forecast.ConditionWithTime(baseCondition, tod)

	s.genMu.Lock()
	defer s.genMu.Unlock()

	if _, ok := s.imageCache.Get(condition); ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Printf("api: background generating banner for %s", condition)
	data, err := s.imageGen.Generate(ctx, baseCondition, tod, t)
	if err != nil {
		log.Printf("api: background banner generation failed: %v", err)
		return
	}
	if err := s.imageCache.Set(condition, data); err != nil {
		log.Printf("api: cache banner: %v", err)
	}
}
