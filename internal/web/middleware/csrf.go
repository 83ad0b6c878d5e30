package middleware

import (
	"net/http"

	"github.com/gorilla/csrf"
)

// CSRFProtection creates a CSRF protection middleware using gorilla/csrf.
// The login and logout forms carry the token as a hidden field; htmx sends it
// in the X-CSRF-Token header.
func CSRFProtection(secret []byte, secure bool, fieldName string) func(http.Handler) http.Handler {
	if fieldName == "" {
		fieldName = "csrf_token"
	}

	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.FieldName(fieldName),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.ErrorHandler(http.HandlerFunc(CSRFFailureHandler)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		if secure {
			return protected
		}
		// Without TLS gorilla/csrf must be told not to demand an https Referer
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// CSRFFailureHandler provides htmx-aware error handling for CSRF failures
func CSRFFailureHandler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		// htmx request - return HTML fragment with proper status
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<p class="error" role="alert">Your session has expired. Please refresh the page and try again.</p>`))
		return
	}

	http.Error(w, "CSRF token validation failed. Please refresh the page and try again.", http.StatusForbidden)
}
