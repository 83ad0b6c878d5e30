package middleware

import (
	"net/http"

	"github.com/shindakun/btweet/internal/config"
)

// SecurityHeaders creates middleware that adds HTTP security headers to all responses
func SecurityHeaders(cfg *config.Config) func(http.Handler) http.Handler {
	headers := cfg.Server.Security.Headers
	set := map[string]string{
		"X-Frame-Options":         headers.XFrameOptions,
		"X-Content-Type-Options":  headers.XContentTypeOptions,
		"Referrer-Policy":         headers.ReferrerPolicy,
		"Content-Security-Policy": headers.ContentSecurityPolicy,
	}
	// HSTS only makes sense when served over TLS
	if cfg.IsHTTPS() {
		set["Strict-Transport-Security"] = headers.StrictTransportSecurity
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range set {
				if value != "" {
					w.Header().Set(name, value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBytesMiddleware limits request bodies to maxBytes; 0 disables the limit
func MaxBytesMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
