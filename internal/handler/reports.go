package handler

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pavelanni/classroom/internal/handler/views"
	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/quiz"
)

// Raw HTML in reports is escaped: goldmark's default renderer omits it.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func (h *Handler) handleOwnReports(w http.ResponseWriter, r *http.Request) {
	h.listReports(w, r, model.UserFromContext(r.Context()).Username)
}

func (h *Handler) handleUserReports(w http.ResponseWriter, r *http.Request) {
	h.listReports(w, r, chi.URLParam(r, "username"))
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request, owner string) {
	reports, err := h.quiz.UserReports(owner)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	render(w, r, http.StatusOK, views.ReportsPage(owner, reports))
}

// handleReport returns the Markdown file, or an HTML rendering of it
// with ?format=html.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "username")
	name := chi.URLParam(r, "name")
	data, err := h.quiz.OpenReport(owner, name)
	if errors.Is(err, quiz.ErrReportNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, "failed to read report", err)
		return
	}

	if r.URL.Query().Get("format") != "html" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `inline; filename="`+owner+"_"+name+`"`)
		_, _ = w.Write(data)
		return
	}
	var buf bytes.Buffer
	if err := markdown.Convert(data, &buf); err != nil {
		serverError(w, r, "failed to render report", err)
		return
	}
	render(w, r, http.StatusOK, views.ReportPage(owner, name, buf.String()))
}
