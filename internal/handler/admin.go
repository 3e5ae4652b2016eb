package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/classroom/internal/handler/views"
	appI18n "github.com/pavelanni/classroom/internal/i18n"
	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/quiz"
	"github.com/pavelanni/classroom/internal/store"
	"github.com/pavelanni/classroom/internal/validate"
)

// Accepted video uploads, by content type and by file extension.
var (
	videoTypes = map[string]string{
		"video/mp4":       ".mp4",
		"video/x-msvideo": ".avi",
		"video/avi":       ".avi",
		"video/quicktime": ".mov",
		"video/webm":      ".webm",
	}
	videoExts = map[string]bool{".mp4": true, ".avi": true, ".mov": true, ".webm": true}
)

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, msg, errMsg string) {
	purged, err := h.quiz.PurgeExpiredUsers(r.Context())
	if err != nil {
		slog.Error("failed to purge expired users", "error", err)
	}
	for _, name := range purged {
		h.sessions.DestroyUser(name)
	}
	users, err := h.store.ListUsers()
	if err != nil {
		serverError(w, r, "failed to list users", err)
		return
	}
	render(w, r, status, views.AdminUsersPage(users, msg, errMsg))
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, "", "")
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	in := validate.Registration{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}
	if err := validate.Struct(in); err != nil {
		h.renderUsers(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), validate.MessageID(err)))
		return
	}
	role := model.UserRole(r.FormValue("role"))
	if role == "" {
		role = model.UserRoleStudent
	}
	if !role.Valid() {
		h.renderUsers(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), "InvalidInput"))
		return
	}
	nickname := strings.TrimSpace(r.FormValue("nickname"))
	if nickname == "" {
		nickname = in.Username
	}

	hash, err := store.HashPassword(in.Password)
	if err != nil {
		serverError(w, r, "failed to hash password", err)
		return
	}
	u := model.User{
		Username:     in.Username,
		Nickname:     nickname,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if h.config.AccountTTL > 0 && role == model.UserRoleStudent {
		exp := time.Now().Add(h.config.AccountTTL)
		u.ExpiresAt = &exp
	}
	if _, err := h.store.CreateUser(u); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			h.renderUsers(w, r, http.StatusConflict, "", appI18n.T(r.Context(), "UsernameTaken"))
			return
		}
		serverError(w, r, "failed to create user", err)
		return
	}
	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := h.store.ToggleUserActive(username); err != nil {
		serverError(w, r, "failed to toggle user active", err)
		return
	}
	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

// handleDeleteUser removes the account with its answers, progress and
// lock, and logs out every session it holds. Its reports move to the
// archive, which only the admin export reads.
func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if id, _ := model.IdentityFromContext(r.Context()); id.Username == username {
		h.renderUsers(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), "InvalidInput"))
		return
	}
	ok, err := h.quiz.DeleteUser(r.Context(), username)
	if err != nil {
		serverError(w, r, "failed to delete user", err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	n := h.sessions.DestroyUser(username)
	slog.Info("deleted user", "username", username, "sessions_closed", n)
	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) renderQuestions(w http.ResponseWriter, r *http.Request, status int, msg, errMsg string) {
	questions, err := h.quiz.AllQuestions()
	if err != nil {
		serverError(w, r, "failed to list questions", err)
		return
	}
	render(w, r, status, views.AdminQuestionsPage(questions, msg, errMsg))
}

func (h *Handler) handleAdminQuestionsPage(w http.ResponseWriter, r *http.Request) {
	h.renderQuestions(w, r, http.StatusOK, "", "")
}

func questionFromForm(r *http.Request) model.Question {
	return model.Question{
		Content: r.FormValue("content"),
		OptionA: r.FormValue("option_A"),
		OptionB: r.FormValue("option_B"),
		OptionC: r.FormValue("option_C"),
		OptionD: r.FormValue("option_D"),
		Correct: model.Option(r.FormValue("correct")),
	}
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	if _, err := h.quiz.AddQuestion(questionFromForm(r)); err != nil {
		h.renderQuestions(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), validate.MessageID(err)))
		return
	}
	h.renderQuestions(w, r, http.StatusOK, appI18n.T(r.Context(), "QuestionSaved"), "")
}

func (h *Handler) handleEditQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	q := questionFromForm(r)
	q.ID = id
	err = h.quiz.EditQuestion(q)
	switch {
	case errors.Is(err, quiz.ErrQuestionNotFound):
		http.NotFound(w, r)
	case err != nil:
		h.renderQuestions(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), validate.MessageID(err)))
	default:
		h.renderQuestions(w, r, http.StatusOK, appI18n.T(r.Context(), "QuestionSaved"), "")
	}
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	err = h.quiz.DeleteQuestion(id)
	if errors.Is(err, quiz.ErrQuestionNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, "failed to delete question", err)
		return
	}
	http.Redirect(w, r, h.path("/admin/questions"), http.StatusSeeOther)
}

// handleImportQuestions appends a JSON or YAML bank. The same file
// content is imported only once.
func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("questions_file")
	if err != nil {
		h.renderQuestions(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), "InvalidInput"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		serverError(w, r, "failed to read upload", err)
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])
	key := "upload:" + hash
	storedHash, err := h.store.GetImportedFileHash(key)
	if err != nil {
		serverError(w, r, "failed to check import status", err)
		return
	}
	if storedHash == hash {
		h.renderQuestions(w, r, http.StatusOK, appI18n.Td(r.Context(), "QuestionsImported", map[string]any{"Count": 0}), "")
		return
	}

	n, err := h.quiz.ImportQuestions(data, header.Filename)
	if err != nil {
		slog.Warn("question import rejected", "filename", header.Filename, "error", err)
		h.renderQuestions(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), validate.MessageID(err)))
		return
	}
	if err := h.store.SetImportedFileHash(key, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}
	h.renderQuestions(w, r, http.StatusOK, appI18n.Td(r.Context(), "QuestionsImported", map[string]any{"Count": n}), "")
}

func (h *Handler) renderVideos(w http.ResponseWriter, r *http.Request, status int, msg, errMsg string) {
	videos, err := h.store.ListVideos()
	if err != nil {
		serverError(w, r, "failed to list videos", err)
		return
	}
	render(w, r, status, views.AdminVideosPage(videos, msg, errMsg))
}

func (h *Handler) handleAdminVideosPage(w http.ResponseWriter, r *http.Request) {
	h.renderVideos(w, r, http.StatusOK, "", "")
}

// videoExtension returns the stored extension for an upload, or false
// if neither its content type nor its name is an accepted video format.
func videoExtension(contentType, filename string) (string, bool) {
	if ext, ok := videoTypes[strings.ToLower(contentType)]; ok {
		return ext, true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if contentType == "application/octet-stream" && videoExts[ext] {
		return ext, true
	}
	return "", false
}

func (h *Handler) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	title := strings.TrimSpace(r.FormValue("title"))
	file, header, err := r.FormFile("video")
	if err != nil || title == "" {
		h.renderVideos(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), "InvalidInput"))
		return
	}
	defer file.Close()

	ext, ok := videoExtension(header.Header.Get("Content-Type"), header.Filename)
	if !ok {
		h.renderVideos(w, r, http.StatusBadRequest, "", appI18n.T(r.Context(), "UnsupportedVideoType"))
		return
	}
	filename := fmt.Sprintf("%s_%s%s", user.Username, uuid.NewString(), ext)
	path := filepath.Join(h.videoDir(), filename)
	if err := saveUpload(path, file); err != nil {
		serverError(w, r, "failed to save video", err)
		return
	}
	id, err := h.store.InsertVideo(model.Video{Title: title, Filename: filename, UploadedBy: user.Username})
	if err != nil {
		os.Remove(path)
		serverError(w, r, "failed to record video", err)
		return
	}
	slog.Info("video uploaded", "id", id, "title", title, "file", filename, "size", header.Size)
	http.Redirect(w, r, h.path("/admin/videos"), http.StatusSeeOther)
}

func (h *Handler) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	v, err := h.store.DeleteVideo(id)
	if err != nil {
		serverError(w, r, "failed to delete video", err)
		return
	}
	if v == nil {
		http.NotFound(w, r)
		return
	}
	if err := os.Remove(filepath.Join(h.videoDir(), v.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove video file", "file", v.Filename, "error", err)
	}
	slog.Info("video deleted", "id", id, "file", v.Filename)
	http.Redirect(w, r, h.path("/admin/videos"), http.StatusSeeOther)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.quiz.ResetAll(r.Context()); err != nil {
		serverError(w, r, "failed to reset quizzes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleResetForm(w http.ResponseWriter, r *http.Request) {
	if err := h.quiz.ResetAll(r.Context()); err != nil {
		serverError(w, r, "failed to reset quizzes", err)
		return
	}
	h.renderUsers(w, r, http.StatusOK, appI18n.T(r.Context(), "QuizReset"), "")
}

func (h *Handler) handleExportReports(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.quiz.Export(&buf); err != nil {
		serverError(w, r, "report export failed", err)
		return
	}
	name := "reports_" + time.Now().Format("20060102_150405") + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
