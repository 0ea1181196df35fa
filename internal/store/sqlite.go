package store

import (
	"database/sql"
	"time"

	"github.com/sorairo/tenki/internal/models"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

func (s *Store) UpsertLocation(l models.Location) error {
	_, err := s.db.Exec(`
		INSERT INTO locations (key, name, latitude, longitude, has_ash, volcano)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			has_ash = excluded.has_ash,
			volcano = excluded.volcano
	`, l.Key, l.Name, l.Lat, l.Lon, l.HasAsh, l.Volcano)
	return err
}

func (s *Store) GetLocations() ([]models.Location, error) {
	rows, err := s.db.Query(`SELECT key, name, latitude, longitude, has_ash, volcano FROM locations ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.Key, &l.Name, &l.Lat, &l.Lon, &l.HasAsh, &l.Volcano); err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}
