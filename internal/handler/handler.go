package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/pavelanni/classroom/internal/access"
	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/quiz"
	"github.com/pavelanni/classroom/internal/session"
	"github.com/pavelanni/classroom/internal/store"
	"github.com/pavelanni/classroom/internal/stream"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	sessions *session.Registry
	gate     *access.Gate
	quiz     *quiz.Machine
	videos   *stream.Server
	config   model.AppConfig
}

// New creates a Handler and makes sure the upload directories exist.
func New(s *store.Store, sessions *session.Registry, q *quiz.Machine, cfg model.AppConfig) (*Handler, error) {
	h := &Handler{
		store:    s,
		sessions: sessions,
		gate:     access.NewGate(sessions),
		quiz:     q,
		videos:   stream.NewServer(),
		config:   cfg,
	}
	for _, dir := range []string{h.videoDir(), h.avatarDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Handler) videoDir() string  { return filepath.Join(h.config.DataDir, "videos") }
func (h *Handler) avatarDir() string { return filepath.Join(h.config.DataDir, "uploads") }

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.limitBody)
	r.Use(h.csrfMiddleware)

	r.Get("/healthz", h.handleHealth)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.handleRegisterPage)
	r.Post("/register", h.handleRegister)

	anyone := h.authorize(func(*http.Request) access.Requirement { return access.RequireAny() })
	admin := h.authorize(func(*http.Request) access.Requirement { return access.RequireAdmin() })
	selfOrAdmin := h.authorize(func(r *http.Request) access.Requirement {
		return access.RequireSelfOrAdmin(chi.URLParam(r, "username"))
	})

	r.Group(func(r chi.Router) {
		r.Use(anyone)
		r.Get("/", h.handleHome)
		r.Post("/logout", h.handleLogout)
		r.Get("/profile", h.handleProfilePage)
		r.Post("/profile", h.handleUpdateProfile)
		r.Post("/password", h.handleChangePassword)
		r.Get("/avatars/{name}", h.handleAvatar)
		r.Get("/videos", h.handleVideosPage)
		r.Get("/videos/{id}/stream", h.handleStream)
		r.Head("/videos/{id}/stream", h.handleStream)
		r.Get("/quiz", h.handleQuizPage)
		r.Get("/reports", h.handleOwnReports)
	})

	r.With(selfOrAdmin).Get("/reports/{username}", h.handleUserReports)
	r.With(selfOrAdmin).Get("/reports/{username}/{name}", h.handleReport)

	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/admin/users", h.handleAdminUsersPage)
		r.Post("/admin/users", h.handleCreateUser)
		r.Post("/admin/users/{username}/toggle", h.handleToggleUserActive)
		r.Post("/admin/users/{username}/delete", h.handleDeleteUser)
		r.Get("/admin/questions", h.handleAdminQuestionsPage)
		r.Post("/admin/questions", h.handleAddQuestion)
		r.Post("/admin/questions/import", h.handleImportQuestions)
		r.Post("/admin/questions/{id}", h.handleEditQuestion)
		r.Post("/admin/questions/{id}/delete", h.handleDeleteQuestion)
		r.Get("/admin/videos", h.handleAdminVideosPage)
		r.Post("/admin/videos", h.handleUploadVideo)
		r.Post("/admin/videos/{id}/delete", h.handleDeleteVideo)
		r.Post("/admin/reset", h.handleResetForm)
		r.Get("/admin/reports/export", h.handleExportReports)
	})

	r.Route("/api", func(r chi.Router) {
		if len(h.config.CORSOrigins) > 0 {
			r.Use(cors.New(cors.Options{
				AllowedOrigins:   h.config.CORSOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost},
				AllowedHeaders:   []string{"Content-Type", csrfHeaderName},
				AllowCredentials: true,
			}).Handler)
		}
		r.With(anyone).Get("/progress", h.handleGetProgress)
		r.With(anyone).Post("/progress", h.handleSaveProgress)
		r.With(anyone).Post("/quiz/answer", h.handleAnswer)
		r.With(anyone).Post("/quiz/finish", h.handleFinish)
		r.With(anyone).Get("/quiz/state", h.handleQuizState)
		r.With(admin).Post("/admin/reset", h.handleReset)
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path returns p prefixed with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// limitBody caps request bodies at the configured upload size.
func (h *Handler) limitBody(next http.Handler) http.Handler {
	limit := h.config.MaxUploadMB << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "path", r.URL.Path, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
