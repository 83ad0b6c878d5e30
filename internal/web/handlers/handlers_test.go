package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shindakun/btweet/internal/apiclient"
	"github.com/shindakun/btweet/internal/auth"
	"github.com/shindakun/btweet/internal/login"
	"github.com/shindakun/btweet/internal/querycache"
	"github.com/shindakun/btweet/internal/storage"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

type testEnv struct {
	h        *Handlers
	sessions *auth.SessionManager
	pages    *login.Registry
	cache    *querycache.Cache

	// afterInvalidate, when set, runs right after a login invalidates authUser
	afterInvalidate func(querycache.Key)
}

// hookInvalidator invalidates the cache and then calls the env hook
type hookInvalidator struct {
	env *testEnv
}

func (i hookInvalidator) Invalidate(key querycache.Key) {
	i.env.cache.Invalidate(key)
	if i.env.afterInvalidate != nil {
		i.env.afterInvalidate(key)
	}
}

// newTestEnv wires handlers against a fake auth API served by api
func newTestEnv(t *testing.T, api http.HandlerFunc) *testEnv {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("apiclient.New() failed: %v", err)
	}

	db, err := storage.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		sessions: auth.InitSessions(testSecret, 3600, false, http.SameSiteLaxMode, db),
		cache:    querycache.New(16, time.Minute),
	}
	env.pages = login.NewRegistry(16, time.Minute, func(clientID string) *login.Coordinator {
		return login.NewCoordinator(client, hookInvalidator{env: env}, querycache.AuthUser(clientID), nil, nil)
	})

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() failed: %v", err)
	}
	env.h = New(env.sessions, env.pages, env.cache, renderer, zap.NewNop(), "test")

	return env
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

// postForm builds a login POST carrying the cookies from prev
func postForm(target string, values url.Values, prev *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	addCookies(req, prev)
	return req
}

// addCookies sends the cookies set on prev the way a browser would, the last
// Set-Cookie for a name winning
func addCookies(req *http.Request, prev *httptest.ResponseRecorder) {
	if prev == nil {
		return
	}
	latest := make(map[string]*http.Cookie)
	var order []string
	// Header() rather than Result(), which would freeze a recorder still in use
	for _, c := range (&http.Response{Header: prev.Header()}).Cookies() {
		if _, seen := latest[c.Name]; !seen {
			order = append(order, c.Name)
		}
		latest[c.Name] = c
	}
	for _, name := range order {
		req.AddCookie(latest[name])
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, respond(http.StatusOK, `{}`))

	rec := httptest.NewRecorder()
	env.h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, respond(http.StatusOK, `{}`))

	rec := httptest.NewRecorder()
	env.h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/signup", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
