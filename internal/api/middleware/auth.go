package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/loudcat/loudcat/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "loudcat_session"

// SessionValidator resolves a session token to a user ID.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// OptionalAuth populates the user context when a valid session exists but
// lets anonymous requests through with a client ID instead. Discovery
// endpoints use it.
func OptionalAuth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := extractToken(r); token != "" {
				if userID, err := sessions.ValidateSession(r.Context(), token); err == nil {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
					return
				}
			}
			next.ServeHTTP(w, withClientID(w, r))
		})
	}
}

// Auth requires a valid session.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			userID, err := sessions.ValidateSession(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

// UserIDFromContext extracts the authenticated user ID from the context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionFromContext returns the caller's session. Anonymous callers get
// auth.Anonymous.
func SessionFromContext(ctx context.Context) auth.Session {
	if id := UserIDFromContext(ctx); id != "" {
		return auth.Identity{UserID: id}
	}
	return auth.Anonymous
}

// TokenFromRequest returns the session token sent with r, if any.
func TokenFromRequest(r *http.Request) string {
	return extractToken(r)
}

func extractToken(r *http.Request) string {
	// Check cookie first (browser clients)
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// Then the Authorization header (API clients)
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
