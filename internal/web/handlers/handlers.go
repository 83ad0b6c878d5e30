package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/shindakun/btweet/internal/auth"
	"github.com/shindakun/btweet/internal/login"
	"github.com/shindakun/btweet/internal/models"
	"github.com/shindakun/btweet/internal/querycache"
)

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	sessions *auth.SessionManager
	pages    *login.Registry
	cache    *querycache.Cache
	renderer *Renderer
	logger   *zap.Logger
	version  string
}

// New creates a new Handlers instance
func New(sessions *auth.SessionManager, pages *login.Registry, cache *querycache.Cache, renderer *Renderer, logger *zap.Logger, version string) *Handlers {
	return &Handlers{
		sessions: sessions,
		pages:    pages,
		cache:    cache,
		renderer: renderer,
		logger:   logger,
		version:  version,
	}
}

// Home renders the signed-in home page (protected route). The user comes
// from the authUser query, so it is refetched after every invalidation.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok || session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.authUser(r, session.ClientID)
	if err != nil {
		h.logger.Warn("failed to load auth user", zap.Error(err))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := TemplateData{
		Title:   "Home",
		Session: session,
		User:    user,
	}
	h.renderTemplate(w, r, http.StatusOK, "home", data)
}

// authUser reads the authUser query of a browser client through the cache
func (h *Handlers) authUser(r *http.Request, clientID string) (*models.AuthUser, error) {
	return querycache.Fetch(r.Context(), h.cache, querycache.AuthUser(clientID), func(context.Context) (*models.AuthUser, error) {
		session, err := h.sessions.GetSession(r)
		if err != nil {
			return nil, err
		}
		return models.ParseAuthUser(session.UserJSON)
	})
}

// Health reports liveness and the running version
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// NotFound renders the 404 error page
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, http.StatusNotFound, "404", TemplateData{Title: "Not found"})
}

// ServerError renders the 500 error page
func (h *Handlers) ServerError(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, http.StatusInternalServerError, "error", TemplateData{Title: "Error"})
}
