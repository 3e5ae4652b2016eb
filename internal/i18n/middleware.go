package i18n

import "net/http"

// Middleware picks a language per request from Accept-Language, falling
// back to the default set in Init, and stores its localizer in the
// request context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := Negotiate(r.Header.Get("Accept-Language"))
			ctx := WithLocalizer(r.Context(), lang, NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
