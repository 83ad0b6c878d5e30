package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recover recovers from panics in later handlers, logs the stack and hands
// the request to onPanic to render an error page
func Recover(logger *zap.Logger, onPanic http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				if r.Header.Get("HX-Request") == "true" {
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				onPanic(w, r)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
