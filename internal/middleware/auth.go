package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const UserCtxKey = contextKey("user_id")

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "sessionid"

// LoginURL is where anonymous callers of protected routes are sent.
const LoginURL = "/user/login/"

// SessionResolver maps a session token to the authenticated user id.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// SessionAuth binds the caller's user id to the request context when the session cookie
// resolves. Anonymous requests pass through unchanged.
func SessionAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.Resolve(r.Context(), cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// LoginRequired redirects anonymous callers to the login page.
func LoginRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			http.Redirect(w, r, LoginURL, http.StatusFound)
			return
		}
		// Protected pages depend on the caller
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		next(w, r)
	}
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserCtxKey, userID)
}

// Extracting user_id in handler
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserCtxKey).(int64)
	return id, ok && id != 0
}
