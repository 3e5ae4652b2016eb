// Package quiz implements the per-user quiz lifecycle: answering,
// finishing (report + completion lock) and the global reset.
//
// A user's quiz is NOT_STARTED until they open the quiz or record an
// answer, IN_PROGRESS until they finish, and LOCKED afterwards. Only an
// admin reset returns a locked user to NOT_STARTED.
package quiz

import (
	"errors"
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

var (
	// ErrQuestionNotFound is returned when an answer refers to an unknown question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidOption is returned for an option outside A-D.
	ErrInvalidOption = errors.New("invalid option")
	// ErrReportNotFound is returned for unknown or malformed report names.
	ErrReportNotFound = errors.New("report not found")
)

// State is the derived quiz state of one user.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateLocked     State = "locked"
)

// QuestionBank is the persistent question set.
type QuestionBank interface {
	ListQuestions() ([]model.Question, error)
	GetQuestion(id int64) (*model.Question, error)
	InsertQuestion(q model.Question) (int64, error)
	UpdateQuestion(q model.Question) (bool, error)
	DeleteQuestion(id int64) (bool, error)
}

// AnswerLedger holds each user's latest answer per question.
type AnswerLedger interface {
	UpsertAnswer(a model.Answer) error
	AnswersForUser(username string) (map[int64]model.Answer, error)
	DeleteAnswersForUser(username string) error
}

// LockStore holds completion locks.
type LockStore interface {
	CreateQuizLock(username string) (bool, error)
	DeleteQuizLock(username string) error
	QuizLocked(username string) (bool, error)
	ResetQuiz() error
}

// ProgressSource supplies video progress for the report.
type ProgressSource interface {
	ProgressForUser(username string) ([]model.VideoProgress, error)
}

// ProfileSource supplies the nickname shown in the report header.
type ProfileSource interface {
	GetUserByUsername(username string) (*model.User, error)
}

// AccountStore removes accounts and their quiz data.
type AccountStore interface {
	DeleteUser(username string) (bool, error)
	ExpiredUsernames() ([]string, error)
}

// SummarySource supplies per-user summaries for the export index.
type SummarySource interface {
	ExportUserSummaries() ([]model.UserSummary, error)
}

// TimerStore keeps the quiz start time attached to a login session.
type TimerStore interface {
	AttachQuizTimer(token string, start time.Time) bool
	QuizTimer(token string) (time.Time, bool)
	DetachQuizTimer(token string)
}

// Store is everything the machine needs from persistence.
// *store.Store satisfies it.
type Store interface {
	QuestionBank
	AnswerLedger
	LockStore
	ProgressSource
	ProfileSource
	AccountStore
	SummarySource
}

// Result is the outcome of FinishTest.
type Result struct {
	AlreadyLocked bool
	Report        string
	Sequence      int
	Score         Score
	Started       time.Time
	Finished      time.Time
}
