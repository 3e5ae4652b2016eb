package store

import (
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

// UpsertAnswer records the latest answer of a user to a question,
// replacing any earlier selection. Resubmitting the stored choice leaves
// the row untouched.
func (s *Store) UpsertAnswer(a model.Answer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO answers (username, question_id, selected, is_correct, answered_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(username, question_id) DO UPDATE
		 SET selected = excluded.selected, is_correct = excluded.is_correct, answered_at = excluded.answered_at
		 WHERE answers.selected <> excluded.selected OR answers.is_correct <> excluded.is_correct`,
		a.Username, a.QuestionID, a.Selected, a.IsCorrect, a.AnsweredAt,
	)
	return err
}

// AnswersForUser returns the user's answers keyed by question ID.
func (s *Store) AnswersForUser(username string) (map[int64]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT username, question_id, selected, is_correct, answered_at FROM answers WHERE username = ?`, username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	answers := make(map[int64]model.Answer)
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.Username, &a.QuestionID, &a.Selected, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers[a.QuestionID] = a
	}
	return answers, rows.Err()
}

// DeleteAnswersForUser removes every answer recorded by a user.
func (s *Store) DeleteAnswersForUser(username string) error {
	_, err := s.db.Exec(`DELETE FROM answers WHERE username = ?`, username)
	return err
}
