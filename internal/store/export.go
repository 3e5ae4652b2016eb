package store

import (
	"fmt"

	"github.com/pavelanni/classroom/internal/model"
)

// ExportUserSummaries builds one export-ready summary per user.
func (s *Store) ExportUserSummaries() ([]model.UserSummary, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	locked, err := s.ListQuizLocks()
	if err != nil {
		return nil, fmt.Errorf("list quiz locks: %w", err)
	}
	isLocked := make(map[string]bool, len(locked))
	for _, name := range locked {
		isLocked[name] = true
	}

	var out []model.UserSummary
	for _, u := range users {
		progress, err := s.ProgressForUser(u.Username)
		if err != nil {
			return nil, fmt.Errorf("progress for %s: %w", u.Username, err)
		}
		answers, err := s.AnswersForUser(u.Username)
		if err != nil {
			return nil, fmt.Errorf("answers for %s: %w", u.Username, err)
		}
		out = append(out, model.UserSummary{
			Username:       u.Username,
			Nickname:       u.Nickname,
			Role:           u.Role,
			Active:         u.Active,
			QuizLocked:     isLocked[u.Username],
			PendingAnswers: len(answers),
			Progress:       progress,
		})
	}
	return out, nil
}
