package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/loudcat/loudcat/internal/api/middleware"
	"github.com/loudcat/loudcat/internal/auth"
	"github.com/loudcat/loudcat/internal/corsproxy"
	"github.com/loudcat/loudcat/internal/discovery"
	"github.com/loudcat/loudcat/internal/event"
	"github.com/loudcat/loudcat/internal/history"
	"github.com/loudcat/loudcat/internal/maintenance"
	"github.com/loudcat/loudcat/internal/provider"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	AuthService      *auth.Service
	Assembler        *discovery.Assembler
	Trackers         *discovery.Trackers
	History          *history.Service
	ProviderRegistry *provider.Registry
	Maintenance      *maintenance.Service
	Events           *event.Bus
	// Proxy is nil when the built-in CORS proxy is disabled.
	Proxy             *corsproxy.Handler
	DB                *sql.DB
	Logger            *slog.Logger
	BasePath          string
	StaticAssets      *StaticAssets
	RequestsPerMinute int
}

// Router sets up all HTTP routes for the application.
type Router struct {
	authService        *auth.Service
	assembler          *discovery.Assembler
	trackers           *discovery.Trackers
	history            *history.Service
	providerRegistry   *provider.Registry
	maintenanceService *maintenance.Service
	events             *event.Bus
	proxy              *corsproxy.Handler
	db                 *sql.DB
	logger             *slog.Logger
	basePath           string
	staticAssets       *StaticAssets
	requestsPerMinute  int
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	trackers := deps.Trackers
	if trackers == nil {
		trackers = discovery.NewTrackers(0)
	}
	return &Router{
		authService:        deps.AuthService,
		assembler:          deps.Assembler,
		trackers:           trackers,
		history:            deps.History,
		providerRegistry:   deps.ProviderRegistry,
		maintenanceService: deps.Maintenance,
		events:             deps.Events,
		proxy:              deps.Proxy,
		db:                 deps.DB,
		logger:             deps.Logger.With(slog.String("component", "api")),
		basePath:           deps.BasePath,
		staticAssets:       deps.StaticAssets,
		requestsPerMinute:  deps.RequestsPerMinute,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
// ctx bounds the background cleanup of the per-IP limiters.
func (r *Router) Handler(ctx context.Context) http.Handler {
	authMw := middleware.Auth(r.authService)
	optionalAuth := middleware.OptionalAuth(r.authService)
	loginLimiter := middleware.NewLoginRateLimiter(ctx)
	pipelineLimiter := middleware.NewPipelineRateLimiter(ctx, r.requestsPerMinute)

	public := func(fn http.HandlerFunc) http.Handler {
		return pipelineLimiter.Middleware(optionalAuth(fn))
	}

	mux := http.NewServeMux()
	bp := r.basePath

	// Public routes
	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)
	mux.Handle("POST "+bp+"/api/v1/auth/register", loginLimiter.Middleware(http.HandlerFunc(r.handleRegister)))
	mux.Handle("POST "+bp+"/api/v1/auth/login", loginLimiter.Middleware(http.HandlerFunc(r.handleLogin)))

	// Discovery routes (auth optional; signed-in searches are recorded)
	mux.Handle("GET "+bp+"/api/v1/artists/profile", public(r.handleArtistProfile))
	mux.Handle("GET "+bp+"/api/v1/artists/profile/stream", public(r.handleArtistProfileStream))
	mux.Handle("POST "+bp+"/api/v1/albums/enrich", public(r.handleEnrichAlbums))

	// Protected routes
	mux.HandleFunc("POST "+bp+"/api/v1/auth/logout", wrapAuth(r.handleLogout, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/auth/me", wrapAuth(r.handleMe, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/history", wrapAuth(r.handleListHistory, authMw))
	mux.HandleFunc("DELETE "+bp+"/api/v1/history", wrapAuth(r.handleClearHistory, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/providers", wrapAuth(r.handleListProviders, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/providers/{name}/test", wrapAuth(r.handleTestProvider, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/maintenance/status", wrapAuth(r.handleMaintenanceStatus, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/maintenance/run", wrapAuth(r.handleMaintenanceRun, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/maintenance/vacuum", wrapAuth(r.handleMaintenanceVacuum, authMw))

	// Web assets
	if r.staticAssets != nil {
		mux.Handle("GET "+bp+"/static/", r.staticAssets.Handler())
	}
	mux.HandleFunc("GET "+bp+"/{$}", r.handleIndex)

	var root http.Handler = mux
	if r.proxy != nil {
		// The proxy is dispatched before the mux: its raw form carries a full
		// URL in the path, which the mux would clean and redirect.
		proxy := pipelineLimiter.Middleware(r.proxy)
		root = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.proxy.Matches(req.URL.Path) {
				proxy.ServeHTTP(w, req)
				return
			}
			mux.ServeHTTP(w, req)
		})
	}

	return middleware.SecurityHeaders(middleware.Logging(r.logger)(root))
}

// wrapAuth wraps a handler function with auth middleware.
func wrapAuth(fn http.HandlerFunc, authMw func(http.Handler) http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authMw(fn).ServeHTTP(w, r)
	}
}
