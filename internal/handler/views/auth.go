package views

import (
	"context"

	"github.com/a-h/templ"
)

// LoginPage renders the login form.
func LoginPage(msg, errMsg string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			notice(w, msg, errMsg)
			form(ctx, w, "/login", false, "")
			input(w, t(ctx, "Username"), "username", "text", "", true)
			input(w, t(ctx, "Password"), "password", "password", "", true)
			w.raw(`<button type="submit">`)
			w.text(t(ctx, "Login"))
			w.raw(`</button></form><p>`)
			w.text(t(ctx, "NoAccount"))
			w.raw(` `)
			link(ctx, w, "/register", t(ctx, "Register"))
			w.raw(`</p>`)
		})
		w.render(ctx, Layout(t(ctx, "Login"), body))
	})
}

// RegisterPage renders the sign-up form, keeping the entered username on error.
func RegisterPage(username, errMsg string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		body := component(func(ctx context.Context, w *writer) {
			notice(w, "", errMsg)
			form(ctx, w, "/register", false, "")
			input(w, t(ctx, "Username"), "username", "text", username, true)
			input(w, t(ctx, "Password"), "password", "password", "", true)
			w.raw(`<button type="submit">`)
			w.text(t(ctx, "Register"))
			w.raw(`</button></form><p>`)
			w.text(t(ctx, "HaveAccount"))
			w.raw(` `)
			link(ctx, w, "/login", t(ctx, "Login"))
			w.raw(`</p>`)
		})
		w.render(ctx, Layout(t(ctx, "Register"), body))
	})
}
