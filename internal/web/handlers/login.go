package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shindakun/btweet/internal/login"
	"github.com/shindakun/btweet/internal/models"
	"github.com/shindakun/btweet/internal/querycache"
)

const (
	submitLabel        = "Login"
	submitLabelPending = "Loading..."
	signupURL          = "/signup"
)

// newLoginPageData projects the form and request state onto the login view
func newLoginPageData(creds models.Credentials, state models.RequestState) *models.LoginPageData {
	data := &models.LoginPageData{
		Title:        "Log in",
		Username:     creds.Username,
		Password:     creds.Password,
		SubmitLabel:  submitLabel,
		PendingLabel: submitLabelPending,
		SignupURL:    signupURL,
	}

	if state.IsPending() {
		data.SubmitDisabled = true
		data.SubmitLabel = submitLabelPending
		data.Polling = true
	}
	if state.IsFailed() {
		data.Error = state.Message()
	}

	return data
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends the browser to target, using HX-Redirect for htmx requests
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// LoginPage renders the login form of this browser's mounted page
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if session, err := h.sessions.GetSession(r); err == nil && session.IsActive() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	clientID, err := h.sessions.ClientID(w, r)
	if err != nil {
		h.logger.Error("failed to resolve client id", zap.Error(err))
		h.ServerError(w, r)
		return
	}

	page := h.pages.Page(clientID)
	h.renderLogin(w, r, http.StatusOK, page.Form.Credentials(), page.Coordinator.State())
}

// LoginStatus renders the submit area for htmx polling while a login is pending
func (h *Handlers) LoginStatus(w http.ResponseWriter, r *http.Request) {
	clientID, err := h.sessions.ClientID(w, r)
	if err != nil {
		h.logger.Error("failed to resolve client id", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	page, ok := h.pages.Lookup(clientID)
	if !ok {
		// Torn down, usually because the login succeeded elsewhere
		redirect(w, r, "/login")
		return
	}

	h.renderPartial(w, r, http.StatusOK, "login-submit", TemplateData{
		Login: newLoginPageData(page.Form.Credentials(), page.Coordinator.State()),
	})
}

// LoginSubmit copies the posted fields into the form and submits it
func (h *Handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	clientID, err := h.sessions.ClientID(w, r)
	if err != nil {
		h.logger.Error("failed to resolve client id", zap.Error(err))
		h.ServerError(w, r)
		return
	}

	page := h.pages.Page(clientID)
	for _, field := range []string{models.FieldUsername, models.FieldPassword} {
		if values, ok := r.PostForm[field]; ok && len(values) > 0 {
			if err := page.Form.Set(field, values[0]); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
		}
	}

	// The session is written before authUser is invalidated
	commit := func(_ context.Context, payload json.RawMessage) error {
		return h.signIn(w, r, clientID, payload)
	}
	state, err := page.Coordinator.SubmitAndCommit(r.Context(), page.Form.Credentials(), commit)
	switch {
	case errors.Is(err, login.ErrSuperseded):
		// A newer submission from this browser owns the page now
		h.renderLogin(w, r, http.StatusOK, page.Form.Credentials(), page.Coordinator.State())
		return
	case errors.Is(err, login.ErrClosed):
		redirect(w, r, "/login")
		return
	case err != nil:
		h.logger.Error("login submission failed", zap.Error(err))
		h.ServerError(w, r)
		return
	}

	if state.IsFailed() {
		h.renderLogin(w, r, http.StatusOK, page.Form.Credentials(), state)
		return
	}

	// Navigating away tears the login page down
	h.pages.Release(clientID)
	redirect(w, r, "/")
}

// signIn stores the session for the user in a login success payload
func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request, clientID string, payload json.RawMessage) error {
	user, err := models.ParseAuthUser(payload)
	if err != nil {
		return err
	}

	session, err := h.sessions.SaveSession(w, r, clientID, user, payload)
	if err != nil {
		return err
	}

	h.logger.Info("user signed in", zap.String("user_id", session.UserID), zap.String("session_id", session.ID))
	return nil
}

// Logout clears the session and drops the cached authUser
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	clientID, err := h.sessions.ClientID(w, r)
	if err != nil {
		h.logger.Error("failed to resolve client id", zap.Error(err))
	}

	if err := h.sessions.ClearSession(w, r); err != nil {
		// Log error but continue with logout
		h.logger.Error("failed to clear session", zap.Error(err))
	}
	if clientID != "" {
		h.cache.Invalidate(querycache.AuthUser(clientID))
	}

	redirect(w, r, "/login")
}

// renderLogin renders the whole login page, or only its submit area for htmx posts
func (h *Handlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, creds models.Credentials, state models.RequestState) {
	data := TemplateData{
		Title: "Log in",
		Login: newLoginPageData(creds, state),
	}

	if isHTMX(r) && r.Method == http.MethodPost {
		h.renderPartial(w, r, status, "login-submit", data)
		return
	}
	h.renderTemplate(w, r, status, "login", data)
}
