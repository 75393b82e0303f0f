package middleware

import (
	"context"
	"net/http"

	"github.com/citzn/civic-auth/internal/auth"
	"github.com/citzn/civic-auth/internal/domain"
	"github.com/citzn/civic-auth/internal/httputil"
)

type contextKey string

const (
	// SessionKey is the context key for the authenticated session.
	SessionKey contextKey = "session"
	// UserEmailKey is the context key for the authenticated user's email.
	UserEmailKey contextKey = "user_email"
)

// Auth creates middleware that validates the opaque session token.
// Checks the Authorization header first, then falls back to the session
// cookie for web clients.
func Auth(sessions *auth.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httputil.GetSessionToken(r)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			session, err := sessions.Get(r.Context(), token)
			if err != nil {
				httputil.Error(w, http.StatusInternalServerError, "session lookup failed")
				return
			}
			if session == nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			// Sliding window bookkeeping only; expiry stays absolute.
			_ = sessions.Touch(r.Context(), token)

			ctx := context.WithValue(r.Context(), SessionKey, session)
			ctx = context.WithValue(ctx, UserEmailKey, session.UserEmail)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the authenticated session from the request context.
func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*domain.Session)
	return session, ok
}

// GetUserEmail extracts the authenticated user's email from the request
// context.
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}
