package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sorairo/tenki/internal/models"
)

// InsertSnapshot records the weather fetched for one location during a run.
func (s *Store) InsertSnapshot(runID string, lw models.LocationWeather) error {
	current, err := json.Marshal(lw.Current)
	if err != nil {
		return fmt.Errorf("marshal current: %w", err)
	}
	forecast, err := json.Marshal(lw.Forecast)
	if err != nil {
		return fmt.Errorf("marshal forecast: %w", err)
	}

	fetchedAt := lw.LastUpdate
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT INTO snapshots (run_id, location_key, fetched_at, current_json, forecast_json)
		VALUES (?, ?, ?, ?, ?)
	`, runID, lw.Key, fetchedAt.UTC(), string(current), string(forecast))
	return err
}

// GetLatestDocument rebuilds the weather document from the most recent
// snapshot of every known location. Times are returned in the store's zone.
func (s *Store) GetLatestDocument() (models.Document, error) {
	rows, err := s.db.Query(`
		SELECT l.key, l.name, l.latitude, l.longitude, l.has_ash, l.volcano,
			   sn.fetched_at, sn.current_json, sn.forecast_json
		FROM snapshots sn
		JOIN locations l ON l.key = sn.location_key
		WHERE sn.id IN (SELECT MAX(id) FROM snapshots GROUP BY location_key)
		ORDER BY l.rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := make(models.Document)
	for rows.Next() {
		var lw models.LocationWeather
		var fetchedAt time.Time
		var current, forecast string
		if err := rows.Scan(&lw.Key, &lw.Name, &lw.Lat, &lw.Lon, &lw.HasAsh, &lw.Volcano,
			&fetchedAt, &current, &forecast); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(current), &lw.Current); err != nil {
			return nil, fmt.Errorf("unmarshal current for %s: %w", lw.Key, err)
		}
		if err := json.Unmarshal([]byte(forecast), &lw.Forecast); err != nil {
			return nil, fmt.Errorf("unmarshal forecast for %s: %w", lw.Key, err)
		}

		lw.LastUpdate = fetchedAt.In(s.loc)
		lw.Current.Time = lw.Current.Time.In(s.loc)
		lw.Current.Sunrise = lw.Current.Sunrise.In(s.loc)
		lw.Current.Sunset = lw.Current.Sunset.In(s.loc)
		for i := range lw.Forecast {
			lw.Forecast[i].Time = lw.Forecast[i].Time.In(s.loc)
		}
		doc[lw.Key] = lw
	}
	return doc, rows.Err()
}

// CountSnapshots returns how many snapshots exist for a location.
func (s *Store) CountSnapshots(locationKey string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE location_key = ?`, locationKey).Scan(&n)
	return n, err
}

// CleanupOldSnapshots deletes snapshots older than the retention period,
// always keeping the latest snapshot of each location.
func (s *Store) CleanupOldSnapshots(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result, err := s.db.Exec(`
		DELETE FROM snapshots
		WHERE fetched_at < ?
		  AND id NOT IN (SELECT MAX(id) FROM snapshots GROUP BY location_key)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
