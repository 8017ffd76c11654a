package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const clientIDKey contextKey = "clientID"

// ClientCookie identifies an anonymous browser across requests.
const ClientCookie = "loudcat_client"

// ClientHeader lets API clients that do not keep cookies name themselves.
const ClientHeader = "X-Loudcat-Client"

const clientCookieMaxAge = 365 * 24 * 60 * 60

// withClientID attaches the anonymous client ID to r, issuing a cookie when
// the request carries none. Only UUIDs are accepted from callers.
func withClientID(w http.ResponseWriter, r *http.Request) *http.Request {
	id := ""
	if c, err := r.Cookie(ClientCookie); err == nil {
		if parsed, err := uuid.Parse(c.Value); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		if parsed, err := uuid.Parse(r.Header.Get(ClientHeader)); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     ClientCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   clientCookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
	return r.WithContext(context.WithValue(r.Context(), clientIDKey, id))
}

// ClientIDFromContext returns the anonymous client ID set by OptionalAuth.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}
