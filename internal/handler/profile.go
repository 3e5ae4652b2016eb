package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/classroom/internal/handler/views"
	appI18n "github.com/pavelanni/classroom/internal/i18n"
	"github.com/pavelanni/classroom/internal/model"
)

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	state, err := h.quiz.State(user.Username, model.SessionTokenFromContext(r.Context()))
	if err != nil {
		serverError(w, r, "failed to derive quiz state", err)
		return
	}
	count, err := h.store.QuestionCount()
	if err != nil {
		serverError(w, r, "failed to count questions", err)
		return
	}
	render(w, r, http.StatusOK, views.HomePage(user, string(state), count))
}

func (h *Handler) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.ProfilePage(model.UserFromContext(r.Context()), "", ""))
}

// handleUpdateProfile saves the nickname and, when a file is attached,
// a new avatar stored under a random name.
func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := r.ParseMultipartForm(h.config.MaxUploadMB << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}
	nickname := strings.TrimSpace(r.FormValue("nickname"))
	if len(nickname) > 64 {
		render(w, r, http.StatusBadRequest, views.ProfilePage(user, "", appI18n.T(r.Context(), "InvalidInput")))
		return
	}

	avatar := ""
	file, header, err := r.FormFile("avatar")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		http.Error(w, "bad upload", http.StatusBadRequest)
		return
	default:
		defer file.Close()
		ext, ok := avatarTypes[header.Header.Get("Content-Type")]
		if !ok {
			render(w, r, http.StatusBadRequest, views.ProfilePage(user, "", appI18n.T(r.Context(), "InvalidInput")))
			return
		}
		avatar = user.Username + "_" + uuid.NewString() + ext
		if err := saveUpload(filepath.Join(h.avatarDir(), avatar), file); err != nil {
			serverError(w, r, "failed to save avatar", err)
			return
		}
	}

	if err := h.store.UpdateProfile(user.Username, nickname, avatar); err != nil {
		serverError(w, r, "failed to update profile", err)
		return
	}
	if avatar != "" && user.Avatar != model.DefaultAvatar {
		if err := os.Remove(filepath.Join(h.avatarDir(), user.Avatar)); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove old avatar", "file", user.Avatar, "error", err)
		}
	}
	updated, err := h.store.GetUserByUsername(user.Username)
	if err != nil || updated == nil {
		serverError(w, r, "failed to reload user", err)
		return
	}
	render(w, r, http.StatusOK, views.ProfilePage(updated, appI18n.T(r.Context(), "ProfileSaved"), ""))
}

func (h *Handler) handleAvatar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.avatarDir(), name))
}

// saveUpload copies src into a new file at path, removing it on failure.
func saveUpload(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
