package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shindakun/btweet/internal/apiclient"
	"github.com/shindakun/btweet/internal/auth"
	"github.com/shindakun/btweet/internal/config"
	"github.com/shindakun/btweet/internal/login"
	"github.com/shindakun/btweet/internal/metrics"
	"github.com/shindakun/btweet/internal/querycache"
	"github.com/shindakun/btweet/internal/storage"
	"github.com/shindakun/btweet/internal/web/handlers"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"Invalid credentials"}`)
	}))
	t.Cleanup(api.Close)

	cfg := config.Default()
	cfg.Session.Secret = "test-secret-key-32-bytes-long!!!"
	cfg.API.BaseURL = api.URL

	db, err := storage.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client, err := apiclient.New(cfg.API.BaseURL, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sessions := auth.InitSessions(cfg.Session.Secret, cfg.Session.MaxAge, false, http.SameSiteLaxMode, db)
	cache := querycache.New(cfg.Cache.Size, cfg.Cache.TTL, querycache.WithMetrics(m))
	pages := login.NewRegistry(cfg.Login.MaxPages, cfg.Login.PageTTL, func(clientID string) *login.Coordinator {
		return login.NewCoordinator(client, cache, querycache.AuthUser(clientID), m, nil)
	})
	renderer, err := handlers.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}

	return NewRouter(Deps{
		Config:   cfg,
		Handlers: handlers.New(sessions, pages, cache, renderer, zap.NewNop(), "test"),
		Sessions: sessions,
		Metrics:  m,
		Gatherer: reg,
		Logger:   zap.NewNop(),
	})
}

func TestRoutes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"login page", http.MethodGet, "/login", http.StatusOK, `name="csrf_token"`},
		{"health", http.MethodGet, "/healthz", http.StatusOK, `"status":"ok"`},
		{"stylesheet", http.MethodGet, "/static/css/app.css", http.StatusOK, ""},
		{"home requires login", http.MethodGet, "/", http.StatusSeeOther, ""},
		{"signup is a link only", http.MethodGet, "/signup", http.StatusNotFound, ""},
		{"login post needs csrf", http.MethodPost, "/login", http.StatusForbidden, ""},
		{"logout post needs csrf", http.MethodPost, "/logout", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("%s %s body missing %q", tt.method, tt.path, tt.wantBody)
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Errorf("%s %s missing security headers", tt.method, tt.path)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `btweet_http_requests_total{method="GET",route="/login",status="2xx"} 1`) {
		t.Errorf("login request not counted:\n%s", rec.Body.String())
	}
}
