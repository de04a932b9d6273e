// Package web holds the HTML views and the static client assets (PWA
// manifest, service worker, offline placeholder, icons), all embedded into
// the binary. The service worker implements the client-side caching policy:
// cache-first for its fixed allow-list of static paths, network-first with
// an offline placeholder for everything else. That policy lives entirely in
// the shipped asset and is not mirrored server-side.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// LoginView is the data for the login template.
type LoginView struct {
	// Error is the one-shot flash notice from a failed login attempt.
	Error string
}

// HomeView is the data for the home template.
type HomeView struct {
	Name            string
	VisitCount      int
	ShouldShowModal bool
}

// Views renders the embedded HTML templates.
type Views struct {
	templates *template.Template
}

// NewViews parses the embedded templates.
func NewViews() (*Views, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &Views{templates: templates}, nil
}

// Render executes the named template into the response.
func (v *Views) Render(response http.ResponseWriter, name string, data interface{}) error {
	response.Header().Set("Content-Type", "text/html; charset=utf-8")

	return v.templates.ExecuteTemplate(response, name, data)
}

// StaticHandler serves the embedded static assets from the site root, so
// /manifest.json, /service-worker.js and the icons resolve to the files
// under static/.
func StaticHandler() (http.Handler, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mounting static assets: %w", err)
	}

	return http.FileServer(http.FS(sub)), nil
}
