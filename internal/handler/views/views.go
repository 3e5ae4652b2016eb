// Package views holds the HTML pages. Components are written directly
// against templ's Component interface.
package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/classroom/internal/i18n"
	"github.com/pavelanni/classroom/internal/model"
)

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) text(s string) { w.raw(templ.EscapeString(s)) }

func (w *writer) textf(format string, args ...any) { w.text(fmt.Sprintf(format, args...)) }

func (w *writer) render(ctx context.Context, c templ.Component) {
	if w.err == nil && c != nil {
		w.err = c.Render(ctx, w.w)
	}
}

func component(fn func(ctx context.Context, w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		fn(ctx, w)
		return w.err
	})
}

// path prefixes p with the deployment base path.
func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func t(ctx context.Context, id string) string { return appI18n.T(ctx, id) }

func csrfField(ctx context.Context, w *writer) {
	w.raw(`<input type="hidden" name="csrf_token" value="`)
	w.text(model.CSRFTokenFromContext(ctx))
	w.raw(`">`)
}

// form opens a POST form to action.
func form(ctx context.Context, w *writer, action string, multipart bool, confirm string) {
	w.raw(`<form method="post" action="`)
	w.text(path(ctx, action))
	w.raw(`"`)
	if multipart {
		w.raw(` enctype="multipart/form-data"`)
	}
	if confirm != "" {
		w.raw(` onsubmit="return confirm(`)
		w.text(strconv.Quote(confirm))
		w.raw(`)"`)
	}
	w.raw(`>`)
	csrfField(ctx, w)
}

func link(ctx context.Context, w *writer, href, label string) {
	w.raw(`<a href="`)
	w.text(path(ctx, href))
	w.raw(`">`)
	w.text(label)
	w.raw(`</a>`)
}

func notice(w *writer, msg, errMsg string) {
	if msg != "" {
		w.raw(`<p class="notice">`)
		w.text(msg)
		w.raw(`</p>`)
	}
	if errMsg != "" {
		w.raw(`<p class="error">`)
		w.text(errMsg)
		w.raw(`</p>`)
	}
}

func input(w *writer, label, name, typ, value string, required bool) {
	w.raw(`<label>`)
	w.text(label)
	w.raw(` <input type="`)
	w.text(typ)
	w.raw(`" name="`)
	w.text(name)
	w.raw(`"`)
	if value != "" {
		w.raw(` value="`)
		w.text(value)
		w.raw(`"`)
	}
	if required {
		w.raw(` required`)
	}
	w.raw(`></label>`)
}

const style = `body{font-family:sans-serif;max-width:960px;margin:0 auto;padding:1rem}
nav a{margin-right:1rem}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.3rem .6rem}
.notice{color:#176117}.error{color:#a11}.correct{color:#176117}.wrong{color:#a11}label{display:block;margin:.4rem 0}`

// Layout wraps body in the page chrome. The navigation bar is shown
// when the request carries an identity.
func Layout(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(`<!DOCTYPE html><html lang="`)
		w.text(appI18n.Lang(ctx))
		w.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.raw(`<meta name="base-path" content="`)
		w.text(model.BasePathFromContext(ctx))
		w.raw(`"><title>`)
		w.text(title)
		w.raw(` - `)
		w.text(t(ctx, "AppTitle"))
		w.raw(`</title><style>`)
		w.raw(style)
		w.raw(`</style></head><body>`)

		if id, ok := model.IdentityFromContext(ctx); ok {
			w.raw(`<nav>`)
			link(ctx, w, "/", t(ctx, "Home"))
			link(ctx, w, "/videos", t(ctx, "Videos"))
			link(ctx, w, "/quiz", t(ctx, "Quiz"))
			link(ctx, w, "/reports", t(ctx, "Reports"))
			link(ctx, w, "/profile", t(ctx, "Profile"))
			if id.IsAdmin() {
				link(ctx, w, "/admin/users", t(ctx, "Users"))
				link(ctx, w, "/admin/questions", t(ctx, "Questions"))
				link(ctx, w, "/admin/videos", t(ctx, "Videos")+" ("+t(ctx, "Admin")+")")
			}
			form(ctx, w, "/logout", false, "")
			w.raw(`<button type="submit">`)
			w.text(t(ctx, "Logout"))
			w.raw(` (`)
			w.text(id.Username)
			w.raw(`)</button></form></nav>`)
		}

		w.raw(`<main><h1>`)
		w.text(title)
		w.raw(`</h1>`)
		w.render(ctx, body)
		w.raw(`</main></body></html>`)
	})
}

const apiScript = `<script>
function csrfToken(){const m=document.cookie.match(/(?:^|; )csrf_token=([^;]*)/);return m?decodeURIComponent(m[1]):""}
function basePath(){return document.querySelector('meta[name="base-path"]').content}
async function postJSON(p,body){const r=await fetch(basePath()+p,{method:"POST",credentials:"same-origin",
headers:{"Content-Type":"application/json","X-CSRF-Token":csrfToken()},body:JSON.stringify(body)});
if(!r.ok)throw new Error(r.status);return r.json()}
</script>`
