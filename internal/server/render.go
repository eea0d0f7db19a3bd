package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"wolweb/internal/store"
)

//go:embed templates
var templateFS embed.FS

// views caches one parsed template set per page, each combined with the
// base layout.
type views struct {
	pages map[string]*template.Template
}

var pageFiles = []string{
	"login.html",
	"register.html",
	"index.html",
	"hosts.html",
	"user.html",
	"about.html",
	"error.html",
	"admin/admin.html",
	"admin/users.html",
}

func newViews() (*views, error) {
	v := &views{pages: map[string]*template.Template{}}
	for _, page := range pageFiles {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		v.pages[page] = t
	}
	return v, nil
}

// viewData is the context mapping handed to every page template.
type viewData struct {
	Title     string
	User      *store.User
	Flashes   []Flash
	CSRFToken string
	Errors    map[string]string
	Form      map[string]string
	Data      any
}

// render executes the page with the shared chrome (identity, flashes,
// CSRF token) filled in.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data viewData) {
	t, ok := s.views.pages[page]
	if !ok {
		s.log.Error().Str("page", page).Msg("unknown template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	data.Title = title
	data.User = currentUser(r)
	data.Flashes = s.takeFlashes(w, r)
	data.CSRFToken = s.csrfToken(w, r)

	// Render to a buffer first so a template failure yields a clean 500
	// instead of a half-written page.
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		s.log.Error().Err(err).Str("page", page).Msg("rendering template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int) {
	s.render(w, r, status, "error.html", http.StatusText(status), viewData{
		Data: map[string]any{"Status": status, "Text": http.StatusText(status)},
	})
}
