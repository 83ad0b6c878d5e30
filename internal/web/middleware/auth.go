package middleware

import (
	"net/http"

	"github.com/shindakun/btweet/internal/auth"
)

// RequireAuth is a middleware that requires a signed-in session
// Redirects to /login if no valid session is found
func RequireAuth(sessionManager *auth.SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessionManager.GetSession(r)
			if err != nil || session == nil {
				// For htmx requests, use HX-Redirect header for client-side redirect
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/login")
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			setLogUser(r.Context(), session.UserID)
			ctx := auth.SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
