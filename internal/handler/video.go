package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/classroom/internal/handler/views"
	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/stream"
)

func (h *Handler) handleVideosPage(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	videos, err := h.store.ListVideos()
	if err != nil {
		serverError(w, r, "failed to list videos", err)
		return
	}
	progress, err := h.store.ProgressForUser(user.Username)
	if err != nil {
		serverError(w, r, "failed to load progress", err)
		return
	}
	markers := make(map[int64]string, len(progress))
	for _, p := range progress {
		markers[p.VideoID] = p.Marker
	}
	render(w, r, http.StatusOK, views.VideosPage(videos, markers))
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	v, err := h.store.GetVideo(id)
	if err != nil {
		serverError(w, r, "failed to get video", err)
		return
	}
	if v == nil {
		http.NotFound(w, r)
		return
	}

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	err = h.videos.ServeRange(ww, r, filepath.Join(h.videoDir(), v.Filename))
	switch {
	case err == nil, errors.Is(err, stream.ErrUnsatisfiableRange):
	case errors.Is(err, stream.ErrNotFound):
		http.NotFound(w, r)
	case ww.Status() == 0:
		serverError(w, r, "failed to open video", err)
	default:
		// Headers are already out, so the error is only logged.
		if r.Context().Err() == nil {
			slog.Warn("video stream failed", "path", r.URL.Path, "video_id", v.ID, "error", err)
		}
	}
}

type progressRequest struct {
	VideoID  int64  `json:"video_id"`
	Progress string `json:"progress"`
}

func (h *Handler) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Progress = strings.TrimSpace(req.Progress)
	if req.Progress == "" || len(req.Progress) > 64 {
		writeJSONError(w, http.StatusBadRequest, "invalid progress")
		return
	}
	v, err := h.store.GetVideo(req.VideoID)
	if err != nil {
		serverError(w, r, "failed to get video", err)
		return
	}
	if v == nil {
		writeJSONError(w, http.StatusNotFound, "video not found")
		return
	}
	if err := h.store.UpsertProgress(model.Progress{Username: user.Username, VideoID: v.ID, Marker: req.Progress}); err != nil {
		serverError(w, r, "failed to save progress", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	progress, err := h.store.ProgressForUser(user.Username)
	if err != nil {
		serverError(w, r, "failed to load progress", err)
		return
	}
	if progress == nil {
		progress = []model.VideoProgress{}
	}
	writeJSON(w, http.StatusOK, progress)
}
