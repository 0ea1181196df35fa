package store

import (
	"time"

	"github.com/sorairo/tenki/internal/volcano"
)

// UpsertAshBulletin inserts a bulletin or refreshes last_seen_at if it is already known.
// Returns true when the bulletin had not been seen before.
func (s *Store) UpsertAshBulletin(b volcano.Bulletin, seenAt time.Time) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ash_bulletins WHERE id = ?`, b.ID).Scan(&exists); err != nil {
		return false, err
	}

	_, err := s.db.Exec(`
		INSERT INTO ash_bulletins (id, volcano, title, office, issued_at, summary, url, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			last_seen_at = excluded.last_seen_at
	`, b.ID, b.Volcano, b.Title, b.Office, b.Issued.UTC(), b.Summary, b.URL, seenAt.UTC(), seenAt.UTC())
	if err != nil {
		return false, err
	}
	return exists == 0, nil
}

// GetRecentAshBulletins returns bulletins for a volcano issued after since, newest first.
func (s *Store) GetRecentAshBulletins(volcanoName string, since time.Time, limit int) ([]volcano.Bulletin, error) {
	rows, err := s.db.Query(`
		SELECT id, volcano, title, COALESCE(office, ''), issued_at, COALESCE(summary, ''), COALESCE(url, '')
		FROM ash_bulletins
		WHERE volcano = ? AND issued_at >= ?
		ORDER BY issued_at DESC
		LIMIT ?
	`, volcanoName, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bulletins []volcano.Bulletin
	for rows.Next() {
		var b volcano.Bulletin
		if err := rows.Scan(&b.ID, &b.Volcano, &b.Title, &b.Office, &b.Issued, &b.Summary, &b.URL); err != nil {
			return nil, err
		}
		b.Issued = b.Issued.In(s.loc)
		bulletins = append(bulletins, b)
	}
	return bulletins, rows.Err()
}
