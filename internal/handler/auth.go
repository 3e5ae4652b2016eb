package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/classroom/internal/access"
	"github.com/pavelanni/classroom/internal/handler/views"
	appI18n "github.com/pavelanni/classroom/internal/i18n"
	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/store"
	"github.com/pavelanni/classroom/internal/validate"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfFieldName     = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfMiddleware implements the double-submit cookie check. Safe methods
// get a token cookie (reused if present); unsafe methods must echo it in
// the csrf_token form field or the X-CSRF-Token header.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			token := ""
			if c, err := r.Cookie(csrfCookieName); err == nil && c.Value != "" {
				token = c.Value
			} else {
				var err error
				token, err = generateCSRFToken()
				if err != nil {
					serverError(w, r, "failed to generate CSRF token", err)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     h.cookiePath(),
					HttpOnly: false,
					Secure:   h.config.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(model.ContextWithCSRFToken(r.Context(), token)))
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}
		sent := r.Header.Get(csrfHeaderName)
		if sent == "" {
			sent = r.FormValue(csrfFieldName)
		}
		if sent == "" {
			slog.Warn("CSRF token missing", "path", r.URL.Path)
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}
		if len(sent) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithCSRFToken(r.Context(), cookie.Value)))
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// authorize returns middleware that asks the gate about the request's
// session. Allowed requests carry the identity, the stored user record
// and the session token in their context.
func (h *Handler) authorize(req func(*http.Request) access.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			d := h.gate.Authorize(token, req(r))
			switch d.Outcome {
			case access.DenyUnauthenticated:
				h.redirectToLogin(w, r)
				return
			case access.DenyForbidden:
				slog.Warn("forbidden", "username", d.Identity.Username, "path", r.URL.Path)
				h.forbidden(w, r)
				return
			}

			user, err := h.store.GetUserByUsername(d.Identity.Username)
			if err != nil {
				serverError(w, r, "failed to load user", err)
				return
			}
			if user == nil || !user.Active {
				// Deleted, disabled or expired since login.
				h.sessions.Destroy(token)
				h.redirectToLogin(w, r)
				return
			}

			ctx := model.ContextWithIdentity(r.Context(), d.Identity)
			ctx = model.ContextWithUser(ctx, user)
			ctx = model.ContextWithSessionToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isAPI(r *http.Request) bool {
	return strings.Contains(r.URL.Path, "/api/")
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	loginPath := h.path("/login")
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", loginPath)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if isAPI(r) {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		writeJSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	}
	if h.config.SessionTTL > 0 {
		c.Expires = time.Now().Add(h.config.SessionTTL)
	}
	http.SetCookie(w, c)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	msg := ""
	if r.URL.Query().Get("registered") == "1" {
		msg = appI18n.T(r.Context(), "Registered")
	}
	render(w, r, http.StatusOK, views.LoginPage(msg, ""))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	user, ok, err := h.store.VerifyPassword(username, password)
	if err != nil {
		serverError(w, r, "failed to verify password", err)
		return
	}
	if !ok {
		slog.Info("login failed", "username", username)
		render(w, r, http.StatusUnauthorized, views.LoginPage("", appI18n.T(r.Context(), "LoginError")))
		return
	}

	// The role comes from the stored record, never from the request.
	token, err := h.sessions.Create(user.Username, user.Role)
	if err != nil {
		serverError(w, r, "failed to create session", err)
		return
	}
	h.setSessionCookie(w, token)
	slog.Info("user logged in", "username", user.Username, "role", user.Role)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(model.SessionTokenFromContext(r.Context()))
	h.clearSessionCookie(w)
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.RegisterPage("", ""))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	in := validate.Registration{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}
	if err := validate.Struct(in); err != nil {
		render(w, r, http.StatusBadRequest, views.RegisterPage(in.Username, appI18n.T(r.Context(), validate.MessageID(err))))
		return
	}

	hash, err := store.HashPassword(in.Password)
	if err != nil {
		serverError(w, r, "failed to hash password", err)
		return
	}
	u := model.User{
		Username:     in.Username,
		Nickname:     in.Username,
		PasswordHash: hash,
		Role:         model.UserRoleStudent,
		Active:       true,
	}
	if h.config.AccountTTL > 0 {
		exp := time.Now().Add(h.config.AccountTTL)
		u.ExpiresAt = &exp
	}
	if _, err := h.store.CreateUser(u); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			render(w, r, http.StatusConflict, views.RegisterPage(in.Username, appI18n.T(r.Context(), "UsernameTaken")))
			return
		}
		serverError(w, r, "failed to create user", err)
		return
	}
	http.Redirect(w, r, h.path("/login?registered=1"), http.StatusSeeOther)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	in := validate.PasswordChange{
		Old: r.FormValue("old_password"),
		New: r.FormValue("new_password"),
	}
	if err := validate.Struct(in); err != nil {
		render(w, r, http.StatusBadRequest, views.ProfilePage(user, "", appI18n.T(r.Context(), validate.MessageID(err))))
		return
	}
	if _, ok, err := h.store.VerifyPassword(user.Username, in.Old); err != nil {
		serverError(w, r, "failed to verify password", err)
		return
	} else if !ok {
		render(w, r, http.StatusBadRequest, views.ProfilePage(user, "", appI18n.T(r.Context(), "OldPasswordWrong")))
		return
	}
	hash, err := store.HashPassword(in.New)
	if err != nil {
		serverError(w, r, "failed to hash password", err)
		return
	}
	if err := h.store.UpdatePasswordHash(user.Username, hash); err != nil {
		serverError(w, r, "failed to update password", err)
		return
	}
	slog.Info("password changed", "username", user.Username)
	render(w, r, http.StatusOK, views.ProfilePage(user, appI18n.T(r.Context(), "PasswordChanged"), ""))
}
