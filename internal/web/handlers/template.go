package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/shindakun/btweet/internal/models"
	"github.com/shindakun/btweet/internal/web/templates"
)

// TemplateData holds common data passed to templates
type TemplateData struct {
	Title     string
	Error     string
	Message   string
	Session   *models.Session
	User      *models.AuthUser
	Login     *models.LoginPageData
	Version   string
	CSRFField template.HTML // Hidden CSRF input for forms
	CSRFToken string        // CSRF token for htmx requests
}

// templateFuncs returns custom template functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"since": func(t time.Time) string {
			return humanize.Time(t)
		},
	}
}

// Renderer executes the embedded page templates. Each page is parsed once
// together with the base layout and all partials.
type Renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
}

// NewRenderer parses every page under pages/ from the embedded templates
func NewRenderer() (*Renderer, error) {
	return newRenderer(templates.FS)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	partials, err := template.New("").Funcs(templateFuncs()).ParseFS(fsys, "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}

	pageFiles, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	r := &Renderer{
		pages:    make(map[string]*template.Template, len(pageFiles)),
		partials: partials,
	}
	for _, file := range pageFiles {
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(fsys, "layouts/base.html", file, "partials/*.html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}

	return r, nil
}

// Page renders a full page with the base layout
func (r *Renderer) Page(w io.Writer, name string, data TemplateData) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return execute(w, tmpl, "base", data)
}

// Partial renders a partial template (for htmx)
func (r *Renderer) Partial(w io.Writer, name string, data TemplateData) error {
	return execute(w, r.partials, name, data)
}

func execute(w io.Writer, tmpl *template.Template, name string, data TemplateData) error {
	return tmpl.ExecuteTemplate(w, name, data)
}

// renderTemplate renders a page with status, filling in the CSRF fields.
// Output is buffered so a template error never leaves a half-written response.
func (h *Handlers) renderTemplate(w http.ResponseWriter, r *http.Request, status int, page string, data TemplateData) {
	h.withRequestData(r, &data)

	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, page, data); err != nil {
		h.logger.Error("failed to render template", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderPartial renders a partial template (for htmx)
func (h *Handlers) renderPartial(w http.ResponseWriter, r *http.Request, status int, partial string, data TemplateData) {
	h.withRequestData(r, &data)

	var buf bytes.Buffer
	if err := h.renderer.Partial(&buf, partial, data); err != nil {
		h.logger.Error("failed to render partial", zap.String("partial", partial), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handlers) withRequestData(r *http.Request, data *TemplateData) {
	data.CSRFField = csrf.TemplateField(r)
	data.CSRFToken = csrf.Token(r)
	if data.Version == "" {
		data.Version = h.version
	}
}
