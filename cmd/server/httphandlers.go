package server

import (
	"errors"
	"net/http"
	"strconv"

	"example.com/forum/internal/middleware"
	"example.com/forum/internal/models"
	"example.com/forum/internal/session"
)

// --- Home ---

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home.html", nil)
}

// --- Users ---

func (s *Server) userListHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.serverError(w, "http/users", err)
		return
	}
	s.render(w, r, http.StatusOK, "user_list.html", &templateData{Users: users})
}

// userDetailHandler shows a user's posts and follow counts, plus whether the caller follows them.
func (s *Server) userDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.notFound(w)
		return
	}
	ctx := r.Context()

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		s.fail(w, "http/users", err)
		return
	}

	data := &templateData{User: u}
	if data.Posts, err = s.store.ListPostsByUser(ctx, id); err != nil {
		s.serverError(w, "http/users", err)
		return
	}
	if data.Followers, err = s.store.CountFollowers(ctx, id); err != nil {
		s.serverError(w, "http/users", err)
		return
	}
	if data.Following, err = s.store.CountFollowing(ctx, id); err != nil {
		s.serverError(w, "http/users", err)
		return
	}
	if callerID, ok := middleware.UserIDFromContext(ctx); ok && callerID != id {
		if data.IsFollowing, err = s.store.FollowExists(ctx, callerID, id); err != nil {
			s.serverError(w, "http/users", err)
			return
		}
	}

	s.render(w, r, http.StatusOK, "user_detail.html", data)
}

func (s *Server) userCreateFormHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "user_create.html", nil)
}

// userCreateHandler registers a user. Invalid input re-renders the form; success goes to login.
func (s *Server) userCreateHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.clientError(w, http.StatusBadRequest)
		return
	}

	reg := models.Registration{
		Username:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password1"),
		Confirmation: r.PostForm.Get("password2"),
	}

	u, err := s.forum.Register(r.Context(), reg)
	if errors.Is(err, models.ErrInvalid) {
		s.render(w, r, http.StatusOK, "user_create.html", &templateData{
			Form:   map[string]string{"username": reg.Username},
			Errors: models.FieldErrors(err),
		})
		return
	}
	if err != nil {
		s.serverError(w, "http/users", err)
		return
	}

	logg.Info("http/users", "User created successfully with user_id="+strconv.FormatInt(u.ID, 10))
	http.Redirect(w, r, middleware.LoginURL, http.StatusFound)
}

// --- Sessions ---

func (s *Server) loginFormHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "user_login.html", nil)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.clientError(w, http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")

	u, err := s.forum.Authenticate(r.Context(), username, r.PostForm.Get("password"))
	if errors.Is(err, models.ErrInvalid) {
		s.render(w, r, http.StatusOK, "user_login.html", &templateData{
			Form:   map[string]string{"username": username},
			Errors: models.FieldErrors(err),
		})
		return
	}
	if err != nil {
		s.serverError(w, "http/login", err)
		return
	}

	token, err := s.sessions.Start(r.Context(), u.ID)
	if err != nil {
		s.serverError(w, "http/login", err)
		return
	}
	http.SetCookie(w, s.sessionCookie(token, int(s.sessions.TTL().Seconds())))

	logg.Info("http/login", "User logged in with user_id="+strconv.FormatInt(u.ID, 10))
	http.Redirect(w, r, "/", http.StatusFound)
}

// logoutHandler revokes the server-side session and clears the cookie.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.sessions.End(r.Context(), cookie.Value); err != nil && !errors.Is(err, session.ErrNotFound) {
			s.serverError(w, "http/logout", err)
			return
		}
	}
	http.SetCookie(w, s.sessionCookie("", -1))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// --- Follows ---

// followCreateHandler makes the caller follow the user in the path.
// Self-follows and duplicates are request failures: the UI never offers them.
func (s *Server) followCreateHandler(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserIDFromContext(r.Context())
	target, ok := s.pathUser(w, r)
	if !ok {
		return
	}

	if _, err := s.forum.Follow(r.Context(), callerID, target.ID); err != nil {
		s.fail(w, "http/follow", err)
		return
	}

	logg.Info("http/follow", "User "+strconv.FormatInt(callerID, 10)+" followed "+strconv.FormatInt(target.ID, 10))
	http.Redirect(w, r, userURL(target.ID), http.StatusFound)
}

// followDeleteHandler removes the caller's follow of the user in the path. No follow is a 404.
func (s *Server) followDeleteHandler(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.UserIDFromContext(r.Context())
	target, ok := s.pathUser(w, r)
	if !ok {
		return
	}

	if err := s.forum.Unfollow(r.Context(), callerID, target.ID); err != nil {
		s.fail(w, "http/follow", err)
		return
	}

	logg.Info("http/follow", "User "+strconv.FormatInt(callerID, 10)+" unfollowed "+strconv.FormatInt(target.ID, 10))
	http.Redirect(w, r, userURL(target.ID), http.StatusFound)
}

// pathUser resolves the {id} wildcard to a user, writing the failure response itself.
func (s *Server) pathUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		s.notFound(w)
		return nil, false
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, "http/users", err)
		return nil, false
	}
	return u, true
}

func userURL(id int64) string {
	return "/user/" + strconv.FormatInt(id, 10) + "/"
}
