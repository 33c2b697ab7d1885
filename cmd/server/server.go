package server

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"example.com/forum/internal/feed"
	"example.com/forum/internal/forum"
	"example.com/forum/internal/logger"
	"example.com/forum/internal/metrics"
	"example.com/forum/internal/middleware"
	"example.com/forum/internal/models"
	"example.com/forum/internal/session"
	"example.com/forum/internal/store"
)

type Server struct {
	store     store.StoreInterface
	forum     *forum.Service
	sessions  *session.Manager
	feed      feed.Store
	templates map[string]*template.Template

	secureCookies bool
}

var logg = logger.New()

// New parses the page templates and wires the handlers' dependencies.
func New(st store.StoreInterface, svc *forum.Service, sessions *session.Manager, fd feed.Store) (*Server, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{
		store:     st,
		forum:     svc,
		sessions:  sessions,
		feed:      fd,
		templates: templates,
	}, nil
}

// Routes builds the forum router. Every request passes session resolution first,
// then request metrics, then the matched handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.homeHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	// Users and sessions
	mux.HandleFunc("GET /user/{$}", s.userListHandler)
	mux.HandleFunc("GET /user/create/{$}", s.userCreateFormHandler)
	mux.HandleFunc("POST /user/create/{$}", s.userCreateHandler)
	mux.HandleFunc("GET /user/login/{$}", s.loginFormHandler)
	mux.HandleFunc("POST /user/login/{$}", s.loginHandler)
	mux.HandleFunc("POST /user/logout/{$}", s.logoutHandler)
	mux.HandleFunc("GET /user/{id}/{$}", s.userDetailHandler)
	mux.HandleFunc("POST /user/{id}/follow/create/{$}", middleware.LoginRequired(s.followCreateHandler))
	mux.HandleFunc("POST /user/{id}/follow/delete/{$}", middleware.LoginRequired(s.followDeleteHandler))

	// Posts, comments and votes
	mux.HandleFunc("GET /post/{$}", s.postListHandler)
	mux.HandleFunc("GET /post/create/{$}", middleware.LoginRequired(s.postCreateFormHandler))
	mux.HandleFunc("POST /post/create/{$}", middleware.LoginRequired(s.postCreateHandler))
	mux.HandleFunc("GET /post/{id}/{$}", s.postDetailHandler)
	mux.HandleFunc("POST /post/{id}/comment/create/{$}", middleware.LoginRequired(s.commentCreateHandler))
	mux.HandleFunc("POST /post/{id}/upvote/create/{$}", middleware.LoginRequired(s.postVoteHandler(models.Upvote)))
	mux.HandleFunc("POST /post/{id}/downvote/create/{$}", middleware.LoginRequired(s.postVoteHandler(models.Downvote)))
	mux.HandleFunc("POST /post/{id}/comment/{comment_id}/upvote/create/{$}", middleware.LoginRequired(s.commentVoteHandler(models.Upvote)))
	mux.HandleFunc("POST /post/{id}/comment/{comment_id}/downvote/create/{$}", middleware.LoginRequired(s.commentVoteHandler(models.Downvote)))

	mux.HandleFunc("GET /feed/{$}", middleware.LoginRequired(s.feedHandler))

	return middleware.SessionAuth(s.sessions)(metrics.Instrument(mux))
}

// Run serves the forum until ctx is cancelled, then shuts down gracefully.
// TLS is used when both certFile and keyFile are set.
func Run(ctx context.Context, s *Server, addr, certFile, keyFile string) {
	s.secureCookies = certFile != "" && keyFile != ""

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if s.secureCookies {
			logg.Info("server", "Starting HTTPS server on "+addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
