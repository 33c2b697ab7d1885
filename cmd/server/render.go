package server

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"example.com/forum/internal/feed"
	"example.com/forum/internal/middleware"
	"example.com/forum/internal/models"
	"example.com/forum/ui"
)

// templateData is the single value every page template receives.
type templateData struct {
	CurrentUser *models.User
	Form        map[string]string // submitted values echoed back into the form
	Errors      map[string]string

	Users       []models.User
	User        *models.User
	Followers   int64
	Following   int64
	IsFollowing bool

	Posts []models.Post
	Post  *postView
	Feed  []feed.Entry
}

type postView struct {
	models.Post
	Author    string
	Upvotes   int64
	Downvotes int64
	Comments  []commentView
}

type commentView struct {
	models.Comment
	Author    string
	Upvotes   int64
	Downvotes int64
}

var pages = []string{
	"home.html",
	"user_list.html",
	"user_detail.html",
	"user_create.html",
	"user_login.html",
	"post_list.html",
	"post_detail.html",
	"post_create.html",
	"feed.html",
}

var functions = template.FuncMap{
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006, 15:04")
	},
}

// loadTemplates parses every page together with the base layout once at startup.
func loadTemplates() (map[string]*template.Template, error) {
	cache := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		ts, err := template.New(page).Funcs(functions).ParseFS(ui.Templates, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, err
		}
		cache[page] = ts
	}
	return cache, nil
}

// currentUser returns the authenticated caller or nil.
func (s *Server) currentUser(r *http.Request) *models.User {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		return nil
	}
	return u
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data *templateData) {
	ts, ok := s.templates[page]
	if !ok {
		s.serverError(w, "http/render", errUnknownTemplate(page))
		return
	}

	if data == nil {
		data = &templateData{}
	}
	if data.CurrentUser == nil {
		data.CurrentUser = s.currentUser(r)
	}

	// Render into a buffer so a template error still produces a clean 500
	buf := new(bytes.Buffer)
	if err := ts.ExecuteTemplate(buf, "base", data); err != nil {
		s.serverError(w, "http/render", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
