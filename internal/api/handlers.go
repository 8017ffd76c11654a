package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/loudcat/loudcat/internal/api/middleware"
	"github.com/loudcat/loudcat/internal/auth"
	"github.com/loudcat/loudcat/internal/database"
	"github.com/loudcat/loudcat/internal/version"
)

const maxAuthBody = 4 << 10

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if r.events != nil {
		resp["events"] = r.events.Stats()
	}
	if r.db != nil {
		if err := r.db.PingContext(req.Context()); err != nil {
			r.logger.Warn("health check: database unreachable", "error", err)
			resp["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		if v, err := database.SchemaVersion(r.db); err == nil {
			resp["schema_version"] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"` //nolint:gosec // G117: request field, not a hardcoded secret
}

func decodeCredentials(w http.ResponseWriter, req *http.Request) (credentials, bool) {
	var body credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxAuthBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return body, false
	}
	return body, true
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeCredentials(w, req)
	if !ok {
		return
	}

	id, err := r.authService.Register(req.Context(), body.Username, body.Password)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already taken")
		return
	case err != nil:
		r.logger.Error("failed to register user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"user_id": id})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeCredentials(w, req)
	if !ok {
		return
	}

	token, userID, err := r.authService.Login(req.Context(), body.Username, body.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     r.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})

	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "token": token})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if token := middleware.TokenFromRequest(req); token != "" {
		if err := r.authService.Logout(req.Context(), token); err != nil {
			r.logger.Warn("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     r.cookiePath(),
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	name, err := r.authService.Username(req.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "username": name})
}

func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	if r.staticAssets != nil {
		index := filepath.Join(r.staticAssets.Dir(), "index.html")
		if _, err := os.Stat(index); err == nil {
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFile(w, req, index)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "LoudCat",
		"profile": r.basePath + "/api/v1/artists/profile?name={artist}",
	})
}

func (r *Router) cookiePath() string {
	if r.basePath == "" {
		return "/"
	}
	return r.basePath
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
