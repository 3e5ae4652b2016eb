package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

// InsertVideo records an uploaded video.
func (s *Store) InsertVideo(v model.Video) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO videos (title, filename, uploaded_by, uploaded_at) VALUES (?, ?, ?, ?)`,
		v.Title, v.Filename, v.UploadedBy, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetVideo returns a video by ID, or nil if there is none.
func (s *Store) GetVideo(id int64) (*model.Video, error) {
	var v model.Video
	err := s.db.QueryRow(
		`SELECT id, title, filename, uploaded_by, uploaded_at FROM videos WHERE id = ?`, id,
	).Scan(&v.ID, &v.Title, &v.Filename, &v.UploadedBy, &v.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVideos returns all videos, newest first.
func (s *Store) ListVideos() ([]model.Video, error) {
	rows, err := s.db.Query(`SELECT id, title, filename, uploaded_by, uploaded_at FROM videos ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var videos []model.Video
	for rows.Next() {
		var v model.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Filename, &v.UploadedBy, &v.UploadedAt); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// DeleteVideo removes a video row and its progress markers, returning
// the deleted record so the caller can remove the file. Returns nil if
// the video did not exist.
func (s *Store) DeleteVideo(id int64) (*model.Video, error) {
	v, err := s.GetVideo(id)
	if err != nil || v == nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM videos WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`DELETE FROM progress WHERE video_id = ?`, id); err != nil {
		return nil, err
	}
	return v, tx.Commit()
}
