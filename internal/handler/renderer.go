package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

const (
	layoutFile      = "layout.html"
	partialsPattern = "partials/*.html"
)

// Renderer manages template parsing and rendering with isolated template sets
type Renderer struct {
	templates map[string]*template.Template
	partials  *template.Template
	logger    *slog.Logger
}

// NewRenderer parses the templates in fsys. Every root-level page is parsed
// into its own clone of the layout so pages can each define "title" and
// "content". Templates under partials/ are available to every page and can
// be rendered on their own for htmx swaps.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	templates := make(map[string]*template.Template)

	// Parse layout and partials once as base template
	baseTmpl, err := template.New("base").Funcs(TemplateFuncs()).ParseFS(fsys, layoutFile, partialsPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	partials, err := template.New("partials").Funcs(TemplateFuncs()).ParseFS(fsys, partialsPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}

	pages, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob templates: %w", err)
	}

	for _, page := range pages {
		if page == layoutFile {
			continue
		}

		pageTmpl, err := baseTmpl.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone template for %s: %w", page, err)
		}

		pageTmpl, err = pageTmpl.ParseFS(fsys, page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", page, err)
		}

		// Store with base name as key (without extension)
		templates[strings.TrimSuffix(page, path.Ext(page))] = pageTmpl
	}

	return &Renderer{
		templates: templates,
		partials:  partials,
		logger:    logger,
	}, nil
}

// Execute returns the template set for a page
func (r *Renderer) Execute(name string) (*template.Template, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Render executes a named partial and writes it to w
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	return r.partials.ExecuteTemplate(w, name, data)
}

// RenderHTTP renders a full page inside the layout with the given status.
// Output is buffered so a failing template never sends half a page.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, status int, name string, data interface{}) {
	tmpl, err := r.Execute(name)
	if err != nil {
		r.logger.Error("template error", "template", name, "error", err)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("render error", "template", name, "error", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderPartialHTTP renders a named partial as a complete response. It is
// used to answer htmx requests.
func (r *Renderer) RenderPartialHTTP(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("render error", "template", name, "error", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
