package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/shindakun/btweet/internal/models"
	"github.com/shindakun/btweet/internal/storage"
)

const (
	sessionName         = "btweet-session"
	sessionKeyClientID  = "client_id"
	sessionKeySessionID = "session_id"
)

// ErrNoSession is returned when the browser is not signed in
var ErrNoSession = errors.New("no session")

type contextKey struct{}

// SessionManager handles the browser cookie and the server-side session rows.
// Every browser gets a client id on first visit; signing in attaches a session to it.
type SessionManager struct {
	store  *sessions.CookieStore
	db     *sql.DB
	maxAge time.Duration
}

// InitSessions creates a session manager with HTTP-only cookies
func InitSessions(secret string, maxAge int, secure bool, sameSite http.SameSite, db *sql.DB) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true, // Prevent JavaScript access
		Secure:   secure,
		SameSite: sameSite,
	}

	lifetime := time.Duration(maxAge) * time.Second
	if lifetime <= 0 {
		// Browser-session cookie; keep the row for a day
		lifetime = 24 * time.Hour
	}

	return &SessionManager{
		store:  store,
		db:     db,
		maxAge: lifetime,
	}
}

// ParseSameSite maps the config value to http.SameSite
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// ClientID returns the browser client id, issuing and saving a new one if the cookie has none
func (sm *SessionManager) ClientID(w http.ResponseWriter, r *http.Request) (string, error) {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		return "", err
	}

	if clientID, ok := cookieSession.Values[sessionKeyClientID].(string); ok && clientID != "" {
		return clientID, nil
	}

	clientID := uuid.New().String()
	cookieSession.Values[sessionKeyClientID] = clientID
	if err := cookieSession.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save cookie session: %w", err)
	}
	return clientID, nil
}

// SaveSession signs the browser in as user. payload is the raw login response.
func (sm *SessionManager) SaveSession(w http.ResponseWriter, r *http.Request, clientID string, user *models.AuthUser, payload []byte) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		UserID:    user.UserID(),
		Username:  user.Username,
		FullName:  user.FullName,
		UserJSON:  payload,
		ExpiresAt: now.Add(sm.maxAge),
		CreatedAt: now,
	}

	if err := storage.SaveSession(sm.db, session); err != nil {
		return nil, err
	}

	cookieSession, err := sm.cookie(r)
	if err != nil {
		return nil, err
	}

	cookieSession.Values[sessionKeyClientID] = clientID
	cookieSession.Values[sessionKeySessionID] = session.ID

	if err := cookieSession.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save cookie session: %w", err)
	}

	return session, nil
}

// GetSession retrieves the signed-in session from cookie and database
func (sm *SessionManager) GetSession(r *http.Request) (*models.Session, error) {
	cookieSession, err := sm.store.Get(r, sessionName)
	if err != nil {
		return nil, ErrNoSession
	}

	sessionID, ok := cookieSession.Values[sessionKeySessionID].(string)
	if !ok || sessionID == "" {
		return nil, ErrNoSession
	}

	session, err := storage.GetSession(sm.db, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if session.IsExpired() {
		if err := storage.DeleteSession(sm.db, session.ID); err != nil {
			return nil, err
		}
		return nil, ErrNoSession
	}

	return session, nil
}

// ClearSession signs the browser out. The client id is kept so the browser
// keeps its cache scope.
func (sm *SessionManager) ClearSession(w http.ResponseWriter, r *http.Request) error {
	cookieSession, err := sm.cookie(r)
	if err != nil {
		return err
	}

	if sessionID, ok := cookieSession.Values[sessionKeySessionID].(string); ok && sessionID != "" {
		if err := storage.DeleteSession(sm.db, sessionID); err != nil {
			return err
		}
	}

	delete(cookieSession.Values, sessionKeySessionID)
	if err := cookieSession.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear cookie session: %w", err)
	}

	return nil
}

// cookie returns the cookie session. An undecodable cookie (e.g. after a
// secret rotation) yields the fresh session gorilla hands back with the error.
func (sm *SessionManager) cookie(r *http.Request) (*sessions.Session, error) {
	cookieSession, err := sm.store.Get(r, sessionName)
	if cookieSession == nil {
		return nil, fmt.Errorf("failed to get cookie session: %w", err)
	}
	return cookieSession, nil
}

// PurgeExpired deletes expired session rows
func (sm *SessionManager) PurgeExpired() (int64, error) {
	return storage.DeleteExpiredSessions(sm.db, time.Now())
}

// GetSessionFromContext retrieves session from request context
func GetSessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(contextKey{}).(*models.Session)
	return session, ok
}

// SetSessionInContext stores session in request context
func SetSessionInContext(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, session)
}
