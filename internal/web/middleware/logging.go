package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type logFieldsKey struct{}

// logFields is filled in by inner middleware and read back once the request finishes
type logFields struct {
	user string
}

// setLogUser records the signed-in user for the request log line
func setLogUser(ctx context.Context, user string) {
	if f, ok := ctx.Value(logFieldsKey{}).(*logFields); ok {
		f.user = user
	}
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration and user.
// Request bodies are never logged, so posted credentials stay out of the logs.
func LoggingMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := &logFields{user: "-"}
			r = r.WithContext(context.WithValue(r.Context(), logFieldsKey{}, fields))

			m := httpsnoop.CaptureMetrics(next, w, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", m.Code),
				zap.Duration("duration", m.Duration.Round(time.Millisecond)),
				zap.String("user", fields.user),
				zap.Int64("bytes", m.Written),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
