package store

import (
	"database/sql"
	"errors"

	"github.com/pavelanni/classroom/internal/model"
)

const questionColumns = `id, content, option_a, option_b, option_c, option_d, correct`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	err := row.Scan(&q.ID, &q.Content, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.Correct)
	return q, err
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO questions (content, option_a, option_b, option_c, option_d, correct)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		q.Content, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.Correct,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateQuestion overwrites a question. It reports whether the question existed.
func (s *Store) UpdateQuestion(q model.Question) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE questions SET content = ?, option_a = ?, option_b = ?, option_c = ?, option_d = ?, correct = ?
		 WHERE id = ?`,
		q.Content, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.Correct, q.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteQuestion removes a question and every recorded answer to it.
func (s *Store) DeleteQuestion(id int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(`DELETE FROM answers WHERE question_id = ?`, id); err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// GetQuestion returns a question by ID, or nil if there is none.
func (s *Store) GetQuestion(id int64) (*model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuestions returns all questions ordered by ID.
func (s *Store) ListQuestions() ([]model.Question, error) {
	rows, err := s.db.Query(`SELECT ` + questionColumns + ` FROM questions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
