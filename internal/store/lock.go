package store

import (
	"log/slog"
	"time"
)

// CreateQuizLock marks the user's quiz as completed. Creation is
// exclusive: it returns false without error when the lock already exists.
func (s *Store) CreateQuizLock(username string) (bool, error) {
	_, err := s.db.Exec(`INSERT INTO quiz_locks (username, locked_at) VALUES (?, ?)`, username, time.Now())
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteQuizLock removes one user's completion lock, if any.
func (s *Store) DeleteQuizLock(username string) error {
	_, err := s.db.Exec(`DELETE FROM quiz_locks WHERE username = ?`, username)
	return err
}

// QuizLocked reports whether the user holds a completion lock.
func (s *Store) QuizLocked(username string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quiz_locks WHERE username = ?`, username).Scan(&n)
	return n > 0, err
}

// ListQuizLocks returns the usernames holding a completion lock.
func (s *Store) ListQuizLocks() ([]string, error) {
	rows, err := s.db.Query(`SELECT username FROM quiz_locks ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ResetQuiz clears every answer and every completion lock in one transaction.
func (s *Store) ResetQuiz() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	answers, err := tx.Exec(`DELETE FROM answers`)
	if err != nil {
		return err
	}
	locks, err := tx.Exec(`DELETE FROM quiz_locks`)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	na, _ := answers.RowsAffected()
	nl, _ := locks.RowsAffected()
	slog.Info("quiz reset", "answers_deleted", na, "locks_cleared", nl)
	return nil
}
