package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pavelanni/classroom/internal/handler/views"
	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/quiz"
)

// handleQuizPage shows the questions and starts the quiz clock.
func (h *Handler) handleQuizPage(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	state, err := h.quiz.Start(r.Context(), user.Username, model.SessionTokenFromContext(r.Context()))
	if err != nil {
		serverError(w, r, "failed to start quiz", err)
		return
	}
	if state == quiz.StateLocked {
		render(w, r, http.StatusOK, views.QuizPage(nil, true))
		return
	}
	questions, err := h.quiz.Questions()
	if err != nil {
		serverError(w, r, "failed to list questions", err)
		return
	}
	render(w, r, http.StatusOK, views.QuizPage(questions, false))
}

type answerRequest struct {
	QuestionID int64        `json:"question_id"`
	Option     model.Option `json:"option"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	correct, err := h.quiz.SubmitAnswer(r.Context(), user.Username, req.QuestionID, req.Option)
	switch {
	case errors.Is(err, quiz.ErrInvalidOption):
		writeJSONError(w, http.StatusBadRequest, "option must be one of A, B, C, D")
		return
	case errors.Is(err, quiz.ErrQuestionNotFound):
		writeJSONError(w, http.StatusNotFound, "question not found")
		return
	case err != nil:
		serverError(w, r, "failed to record answer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_correct": correct})
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if _, err := h.quiz.FinishTest(r.Context(), user.Username, model.SessionTokenFromContext(r.Context())); err != nil {
		serverError(w, r, "failed to finish quiz", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuizState(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	state, err := h.quiz.State(user.Username, model.SessionTokenFromContext(r.Context()))
	if err != nil {
		serverError(w, r, "failed to derive quiz state", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}
