// Package render implements domain.Renderer with html/template.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/pscheid92/statusfeed/internal/domain"
)

const templatePattern = "templates/*.html"

// Renderer executes named templates ("github" renders templates/github.html).
// It is safe for concurrent use by all watchers.
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
	reloadFS  fs.FS
}

// New parses every template under templates/ in fsys.
func New(fsys fs.FS) (*Renderer, error) {
	templates, err := template.ParseFS(fsys, templatePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: templates}, nil
}

// WithReload makes RenderPage re-parse templates from fsys before each page render.
// Used in development so template edits show up on browser refresh.
func (r *Renderer) WithReload(fsys fs.FS) *Renderer {
	r.reloadFS = fsys
	return r
}

// Render executes the template called name against record.
func (r *Renderer) Render(name string, record any) (string, error) {
	r.mu.RLock()
	templates := r.templates
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".html", record); err != nil {
		return "", &domain.RenderError{Template: name, Err: err}
	}
	return buf.String(), nil
}

// RenderPage renders a full page, reloading templates first when reload is enabled.
// A failed reload keeps the previous templates.
func (r *Renderer) RenderPage(name string, data any) (string, error) {
	if r.reloadFS != nil {
		if err := r.reload(); err != nil {
			slog.Warn("Template reload failed, using previous templates", "error", err)
		}
	}
	return r.Render(name, data)
}

func (r *Renderer) reload() error {
	templates, err := template.ParseFS(r.reloadFS, templatePattern)
	if err != nil {
		return fmt.Errorf("failed to reparse templates: %w", err)
	}
	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()
	return nil
}
