package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

// Machine drives the quiz lifecycle for all users.
//
// Operations on one user are serialized by a per-user mutex. ResetAll
// holds resetMu exclusively, so it never interleaves with a finish or an
// answer in flight.
type Machine struct {
	store   Store
	timers  TimerStore
	reports *ReportDir
	now     func() time.Time

	resetMu sync.RWMutex

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewMachine returns a Machine writing reports under reports.
func NewMachine(s Store, timers TimerStore, reports *ReportDir) *Machine {
	return &Machine{
		store:   s,
		timers:  timers,
		reports: reports,
		now:     time.Now,
		users:   make(map[string]*sync.Mutex),
	}
}

func (m *Machine) userLock(username string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.users[username]
	if !ok {
		l = &sync.Mutex{}
		m.users[username] = l
	}
	return l
}

// lockUser takes the shared reset lock and the user's own mutex. The
// returned func releases both.
func (m *Machine) lockUser(username string) func() {
	m.resetMu.RLock()
	l := m.userLock(username)
	l.Lock()
	return func() {
		l.Unlock()
		m.resetMu.RUnlock()
	}
}

// Start attaches a quiz timer to the session unless one is already
// running or the user's quiz is locked. It returns the state after the
// call.
func (m *Machine) Start(ctx context.Context, username, token string) (State, error) {
	locked, err := m.store.QuizLocked(username)
	if err != nil {
		return "", fmt.Errorf("check lock: %w", err)
	}
	if locked {
		return StateLocked, nil
	}
	if _, ok := m.timers.QuizTimer(token); !ok {
		if m.timers.AttachQuizTimer(token, m.now()) {
			slog.DebugContext(ctx, "quiz timer started", "username", username)
		}
	}
	return StateInProgress, nil
}

// Questions returns the bank without answer keys.
func (m *Machine) Questions() ([]model.PublicQuestion, error) {
	qs, err := m.store.ListQuestions()
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Public())
	}
	return out, nil
}

// SubmitAnswer records the user's choice for a question and reports
// whether it is correct. Resubmitting overwrites the previous choice.
// Once the quiz is locked the answer is still checked but not stored.
func (m *Machine) SubmitAnswer(ctx context.Context, username string, questionID int64, option model.Option) (bool, error) {
	if !option.Valid() {
		return false, ErrInvalidOption
	}
	unlock := m.lockUser(username)
	defer unlock()

	q, err := m.store.GetQuestion(questionID)
	if err != nil {
		return false, fmt.Errorf("get question %d: %w", questionID, err)
	}
	if q == nil {
		return false, ErrQuestionNotFound
	}
	correct := option == q.Correct

	locked, err := m.store.QuizLocked(username)
	if err != nil {
		return false, fmt.Errorf("check lock: %w", err)
	}
	if locked {
		slog.DebugContext(ctx, "answer after completion not recorded", "username", username, "question_id", questionID)
		return correct, nil
	}

	err = m.store.UpsertAnswer(model.Answer{
		Username:   username,
		QuestionID: questionID,
		Selected:   option,
		IsCorrect:  correct,
		AnsweredAt: m.now(),
	})
	if err != nil {
		return false, fmt.Errorf("record answer: %w", err)
	}
	return correct, nil
}

// FinishTest locks the quiz, scores the user's answers and writes a new
// report. Finishing an already locked quiz does nothing. If the report
// cannot be written the lock is released again.
func (m *Machine) FinishTest(ctx context.Context, username, token string) (Result, error) {
	unlock := m.lockUser(username)
	defer unlock()

	created, err := m.store.CreateQuizLock(username)
	if err != nil {
		return Result{}, fmt.Errorf("create quiz lock: %w", err)
	}
	if !created {
		return Result{AlreadyLocked: true}, nil
	}

	res, err := m.writeReport(username, token)
	if err != nil {
		if derr := m.store.DeleteQuizLock(username); derr != nil {
			slog.ErrorContext(ctx, "failed to release quiz lock", "username", username, "error", derr)
		}
		return Result{}, err
	}

	if err := m.store.DeleteAnswersForUser(username); err != nil {
		return res, fmt.Errorf("clear answers: %w", err)
	}
	m.timers.DetachQuizTimer(token)

	slog.InfoContext(ctx, "quiz finished",
		"username", username,
		"report", res.Report,
		"correct", res.Score.Correct,
		"total", res.Score.Total,
		"grade", res.Score.Grade)
	return res, nil
}

func (m *Machine) writeReport(username, token string) (Result, error) {
	questions, err := m.store.ListQuestions()
	if err != nil {
		return Result{}, fmt.Errorf("list questions: %w", err)
	}
	answers, err := m.store.AnswersForUser(username)
	if err != nil {
		return Result{}, fmt.Errorf("load answers: %w", err)
	}
	progress, err := m.store.ProgressForUser(username)
	if err != nil {
		return Result{}, fmt.Errorf("load progress: %w", err)
	}
	var nickname string
	if u, err := m.store.GetUserByUsername(username); err != nil {
		return Result{}, fmt.Errorf("load user: %w", err)
	} else if u != nil {
		nickname = u.Nickname
	}

	correct := 0
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && a.Selected == q.Correct {
			correct++
		}
	}
	score := NewScore(correct, len(questions))
	finished := m.now()
	started, _ := m.timers.QuizTimer(token)

	name, seq, err := m.reports.create(username, func(seq int) []byte {
		return renderReport(reportData{
			Sequence:  seq,
			Username:  username,
			Nickname:  nickname,
			Started:   started,
			Finished:  finished,
			Score:     score,
			Questions: questions,
			Answers:   answers,
			Progress:  progress,
		})
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Report:   name,
		Sequence: seq,
		Score:    score,
		Started:  started,
		Finished: finished,
	}, nil
}

// DeleteUser removes the account with its answers, progress and lock,
// and archives its reports so a later account with the same name starts
// without any. It holds the user's quiz mutex, so it never interleaves
// with a finish in flight. It reports whether the account existed.
func (m *Machine) DeleteUser(ctx context.Context, username string) (bool, error) {
	unlock := m.lockUser(username)
	defer unlock()

	existed, err := m.store.DeleteUser(username)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	archived, err := m.reports.archive(username, m.now())
	if err != nil {
		return existed, err
	}
	if archived != "" {
		slog.InfoContext(ctx, "archived reports", "username", username, "archive", archived)
	}
	return existed, nil
}

// PurgeExpiredUsers deletes every expired account the way DeleteUser
// does and returns the purged names.
func (m *Machine) PurgeExpiredUsers(ctx context.Context) ([]string, error) {
	expired, err := m.store.ExpiredUsernames()
	if err != nil {
		return nil, fmt.Errorf("list expired users: %w", err)
	}
	var purged []string
	for _, name := range expired {
		ok, err := m.DeleteUser(ctx, name)
		if err != nil {
			return purged, fmt.Errorf("purge %s: %w", name, err)
		}
		if ok {
			purged = append(purged, name)
		}
	}
	if len(purged) > 0 {
		slog.InfoContext(ctx, "purged expired users", "count", len(purged))
	}
	return purged, nil
}

// ResetAll clears every answer and every completion lock. Reports are kept.
func (m *Machine) ResetAll(ctx context.Context) error {
	m.resetMu.Lock()
	defer m.resetMu.Unlock()
	if err := m.store.ResetQuiz(); err != nil {
		return fmt.Errorf("reset quiz: %w", err)
	}
	slog.InfoContext(ctx, "all quizzes reset")
	return nil
}

// State derives the user's quiz state from the lock, the answer ledger
// and the session's timer.
func (m *Machine) State(username, token string) (State, error) {
	locked, err := m.store.QuizLocked(username)
	if err != nil {
		return "", fmt.Errorf("check lock: %w", err)
	}
	if locked {
		return StateLocked, nil
	}
	if _, ok := m.timers.QuizTimer(token); ok {
		return StateInProgress, nil
	}
	answers, err := m.store.AnswersForUser(username)
	if err != nil {
		return "", fmt.Errorf("load answers: %w", err)
	}
	if len(answers) > 0 {
		return StateInProgress, nil
	}
	return StateNotStarted, nil
}

// UserReports lists the reports of one user.
func (m *Machine) UserReports(username string) ([]model.ReportInfo, error) {
	return m.reports.List(username)
}

// OpenReport returns the Markdown content of one report.
func (m *Machine) OpenReport(username, name string) ([]byte, error) {
	return m.reports.Read(username, name)
}
