package store

import (
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

// UpsertProgress stores the user's latest progress marker for a video.
func (s *Store) UpsertProgress(p model.Progress) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO progress (username, video_id, marker, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(username, video_id) DO UPDATE SET marker = ?, updated_at = ?`,
		p.Username, p.VideoID, p.Marker, now, p.Marker, now,
	)
	return err
}

// ProgressForUser returns the user's progress markers joined with video titles.
func (s *Store) ProgressForUser(username string) ([]model.VideoProgress, error) {
	rows, err := s.db.Query(
		`SELECT p.video_id, v.title, p.marker
		 FROM progress p JOIN videos v ON v.id = p.video_id
		 WHERE p.username = ? ORDER BY v.id`, username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.VideoProgress
	for rows.Next() {
		var vp model.VideoProgress
		if err := rows.Scan(&vp.VideoID, &vp.Title, &vp.Marker); err != nil {
			return nil, err
		}
		out = append(out, vp)
	}
	return out, rows.Err()
}
