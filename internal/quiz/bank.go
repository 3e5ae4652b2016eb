package quiz

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/validate"
)

// AddQuestion validates and stores a new question.
func (m *Machine) AddQuestion(q model.Question) (int64, error) {
	q = normalizeQuestion(q)
	if err := validate.Struct(q); err != nil {
		return 0, err
	}
	id, err := m.store.InsertQuestion(q)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	slog.Info("question added", "id", id)
	return id, nil
}

// EditQuestion replaces the content and key of an existing question.
// Answers already recorded keep their stored correctness.
func (m *Machine) EditQuestion(q model.Question) error {
	q = normalizeQuestion(q)
	if err := validate.Struct(q); err != nil {
		return err
	}
	ok, err := m.store.UpdateQuestion(q)
	if err != nil {
		return fmt.Errorf("update question %d: %w", q.ID, err)
	}
	if !ok {
		return ErrQuestionNotFound
	}
	slog.Info("question updated", "id", q.ID)
	return nil
}

// DeleteQuestion removes a question and every answer to it.
func (m *Machine) DeleteQuestion(id int64) error {
	ok, err := m.store.DeleteQuestion(id)
	if err != nil {
		return fmt.Errorf("delete question %d: %w", id, err)
	}
	if !ok {
		return ErrQuestionNotFound
	}
	slog.Info("question deleted", "id", id)
	return nil
}

// AllQuestions returns the bank including answer keys.
func (m *Machine) AllQuestions() ([]model.Question, error) {
	return m.store.ListQuestions()
}

// ParseQuestions decodes a question bank file. Files ending in .yaml or
// .yml are read as YAML, anything else as JSON. Every question must be
// complete; nothing is returned if one is not.
func ParseQuestions(data []byte, name string) ([]model.Question, error) {
	var qs []model.Question
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	for i := range qs {
		qs[i] = normalizeQuestion(qs[i])
		qs[i].ID = 0
		if err := validate.Struct(qs[i]); err != nil {
			return nil, fmt.Errorf("question %d in %s: %w", i+1, name, err)
		}
	}
	return qs, nil
}

// ImportQuestions parses a bank file and appends its questions.
func (m *Machine) ImportQuestions(data []byte, name string) (int, error) {
	qs, err := ParseQuestions(data, name)
	if err != nil {
		return 0, err
	}
	for _, q := range qs {
		if _, err := m.store.InsertQuestion(q); err != nil {
			return 0, fmt.Errorf("insert question from %s: %w", name, err)
		}
	}
	slog.Info("imported questions", "source", name, "count", len(qs))
	return len(qs), nil
}

func normalizeQuestion(q model.Question) model.Question {
	q.Content = strings.TrimSpace(q.Content)
	q.OptionA = strings.TrimSpace(q.OptionA)
	q.OptionB = strings.TrimSpace(q.OptionB)
	q.OptionC = strings.TrimSpace(q.OptionC)
	q.OptionD = strings.TrimSpace(q.OptionD)
	q.Correct = model.Option(strings.ToUpper(strings.TrimSpace(string(q.Correct))))
	return q
}
