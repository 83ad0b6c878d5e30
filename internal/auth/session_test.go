package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shindakun/btweet/internal/models"
	"github.com/shindakun/btweet/internal/storage"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func newTestManager(t *testing.T, maxAge int) *SessionManager {
	t.Helper()

	db, err := storage.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return InitSessions(testSecret, maxAge, false, http.SameSiteLaxMode, db)
}

// withCookies copies the Set-Cookie headers of rec onto a new request
func withCookies(rec *httptest.ResponseRecorder, method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestClientIDIsStable(t *testing.T) {
	sm := newTestManager(t, 3600)

	rec := httptest.NewRecorder()
	first, err := sm.ClientID(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if err != nil {
		t.Fatalf("ClientID() failed: %v", err)
	}
	if first == "" {
		t.Fatal("ClientID() returned empty id")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("ClientID() did not set a cookie")
	}

	second, err := sm.ClientID(httptest.NewRecorder(), withCookies(rec, http.MethodGet, "/login"))
	if err != nil {
		t.Fatalf("ClientID() failed: %v", err)
	}
	if second != first {
		t.Errorf("ClientID() = %q on second visit, want %q", second, first)
	}
}

func TestClientIDWithForeignCookie(t *testing.T) {
	sm := newTestManager(t, 3600)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: sessionName, Value: "not-a-signed-cookie"})

	id, err := sm.ClientID(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("ClientID() failed on undecodable cookie: %v", err)
	}
	if id == "" {
		t.Error("ClientID() should issue a fresh id")
	}
}

func TestSaveGetClearSession(t *testing.T) {
	sm := newTestManager(t, 3600)

	if _, err := sm.GetSession(httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("GetSession() without cookie error = %v, want ErrNoSession", err)
	}

	user := &models.AuthUser{ID: "u1", Username: "alice", FullName: "Alice"}
	rec := httptest.NewRecorder()
	saved, err := sm.SaveSession(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "client-1", user, []byte(`{"id":"u1"}`))
	if err != nil {
		t.Fatalf("SaveSession() failed: %v", err)
	}

	got, err := sm.GetSession(withCookies(rec, http.MethodGet, "/"))
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got.ID != saved.ID || got.UserID != "u1" || got.ClientID != "client-1" {
		t.Errorf("GetSession() = %+v, want session %s for u1", got, saved.ID)
	}

	clearRec := httptest.NewRecorder()
	if err := sm.ClearSession(clearRec, withCookies(rec, http.MethodPost, "/logout")); err != nil {
		t.Fatalf("ClearSession() failed: %v", err)
	}
	if _, err := storage.GetSession(sm.db, saved.ID); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("session row still present after ClearSession: %v", err)
	}

	// The browser keeps its client id after signing out
	id, err := sm.ClientID(httptest.NewRecorder(), withCookies(clearRec, http.MethodGet, "/login"))
	if err != nil {
		t.Fatal(err)
	}
	if id != "client-1" {
		t.Errorf("client id after logout = %q, want client-1", id)
	}
}

func TestParseSameSite(t *testing.T) {
	tests := map[string]http.SameSite{
		"strict": http.SameSiteStrictMode,
		"None":   http.SameSiteNoneMode,
		"lax":    http.SameSiteLaxMode,
		"":       http.SameSiteLaxMode,
	}
	for in, want := range tests {
		if got := ParseSameSite(in); got != want {
			t.Errorf("ParseSameSite(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSessionContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := GetSessionFromContext(req.Context()); ok {
		t.Fatal("empty context should have no session")
	}

	ctx := SetSessionInContext(req.Context(), &models.Session{ID: "s1"})
	got, ok := GetSessionFromContext(ctx)
	if !ok || got.ID != "s1" {
		t.Errorf("GetSessionFromContext() = %+v, %v", got, ok)
	}
}
