package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/loudcat/loudcat/internal/api"
	"github.com/loudcat/loudcat/internal/auth"
	"github.com/loudcat/loudcat/internal/config"
	"github.com/loudcat/loudcat/internal/corsproxy"
	"github.com/loudcat/loudcat/internal/database"
	"github.com/loudcat/loudcat/internal/discovery"
	"github.com/loudcat/loudcat/internal/event"
	"github.com/loudcat/loudcat/internal/history"
	"github.com/loudcat/loudcat/internal/logging"
	"github.com/loudcat/loudcat/internal/maintenance"
	"github.com/loudcat/loudcat/internal/provider"
	"github.com/loudcat/loudcat/internal/provider/coverart"
	"github.com/loudcat/loudcat/internal/provider/fetch"
	"github.com/loudcat/loudcat/internal/provider/itunes"
	"github.com/loudcat/loudcat/internal/provider/musicbrainz"
	"github.com/loudcat/loudcat/internal/version"
)

const staticDir = "web/static"

func main() {
	// Handle subcommands before starting the server
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "reset-credentials":
			err = resetCredentials()
		case "lookup":
			err = lookup(os.Args[2:])
		default:
			err = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("LC_CONFIG_PATH"); p != "" {
		return p
	}
	return "/data/config.yaml"
}

func run() error {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(cfg.Logging)
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenAndMigrate(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// The bus outlives the signal context so events published during
	// shutdown still reach the database.
	eventBus := event.NewBus(logger, 256)
	busCtx, stopBus := context.WithCancel(context.WithoutCancel(ctx))
	busDone := make(chan struct{})
	go func() {
		eventBus.Run(busCtx)
		close(busDone)
	}()
	defer func() {
		stopBus()
		<-busDone
	}()
	eventBus.SubscribeAll(func(e event.Event) {
		logger.Debug("event", slog.String("type", string(e.Type)), slog.Any("data", e.Data))
	})

	authService := auth.NewService(db)
	historyService := history.NewService(db, cfg.History.MaxEntries, logger)
	historyService.Subscribe(eventBus)
	maintenanceService := maintenance.NewService(db, cfg.Database.Path, authService, logger)

	staticAssets := api.NewStaticAssets(staticDir, cfg.Server.BasePath, logger)

	cat, err := buildCatalog(cfg, placeholderURL(cfg, staticAssets), logger)
	if err != nil {
		return err
	}
	cat.assembler.SetEventBus(eventBus)

	var proxy *corsproxy.Handler
	if cfg.Server.Proxy.Enabled {
		proxy = corsproxy.New(corsproxy.Options{
			Prefix:       cfg.Server.BasePath + "/proxy",
			AllowedHosts: cfg.Server.Proxy.AllowedHosts,
			UserAgent:    cfg.Catalog.UserAgent,
			Timeout:      cfg.Catalog.Timeout,
			Limiter:      cat.limits,
		}, logger)
	}

	router := api.NewRouter(api.RouterDeps{
		AuthService:       authService,
		Assembler:         cat.assembler,
		Trackers:          discovery.NewTrackers(30 * time.Minute),
		History:           historyService,
		ProviderRegistry:  cat.registry,
		Maintenance:       maintenanceService,
		Events:            eventBus,
		Proxy:             proxy,
		DB:                db,
		Logger:            logger,
		BasePath:          cfg.Server.BasePath,
		StaticAssets:      staticAssets,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Streams run for up to max_albums * pace_interval plus catalog latency.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Hot reload of logging and per-provider rate limits
	eventBus.Subscribe(event.ConfigReloaded, func(e event.Event) {
		logger.Info("configuration reloaded", slog.String("path", e.String("path")))
	})
	go func() {
		err := config.Watch(ctx, path, logger, func(next *config.Config) {
			logManager.Reconfigure(next.Logging)
			applyRateLimits(cat.limits, next.Catalog.RateLimits)
			eventBus.Publish(event.Event{Type: event.ConfigReloaded, Data: map[string]any{"path": path}})
		})
		if err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	// Session cleanup and SQLite housekeeping
	if cfg.Database.MaintenanceInterval > 0 {
		go maintenanceService.StartScheduler(ctx, cfg.Database.MaintenanceInterval)
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("base_path", cfg.Server.BasePath),
			slog.String("version", version.Version),
			slog.Bool("cors_proxy", proxy != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// catalog is the wired set of upstream adapters and the pipeline built on them.
type catalog struct {
	limits    *provider.RateLimiterMap
	registry  *provider.Registry
	assembler *discovery.Assembler
}

func buildCatalog(cfg *config.Config, placeholder string, logger *slog.Logger) (*catalog, error) {
	limits := provider.NewRateLimiterMap()
	applyRateLimits(limits, cfg.Catalog.RateLimits)

	primary, secondary := newFetchers(cfg, logger)

	mb := musicbrainz.NewWithBaseURL(primary, limits, logger, cfg.Catalog.MusicBrainzURL)
	art := coverart.NewWithBaseURL(primary, limits, logger, cfg.Catalog.CoverArtURL)
	it := itunes.NewWithBaseURL(secondary, limits, logger, cfg.Catalog.ITunesURL)
	it.SetCountry(cfg.Catalog.ITunesCountry)

	registry := provider.NewRegistry()
	registry.Register(mb)
	registry.Register(art)
	registry.Register(it)

	policy, err := discovery.ParseMatchPolicy(cfg.Matching.Policy)
	if err != nil {
		return nil, err
	}
	pacer, err := discovery.NewPacer(cfg.Matching.Pacing, cfg.Matching.PaceInterval)
	if err != nil {
		return nil, err
	}

	matcher := discovery.NewMatcher(it, pacer, discovery.MatchConfig{
		MaxAlbums:      cfg.Matching.MaxAlbums,
		CandidateLimit: cfg.Matching.CandidateLimit,
		Policy:         policy,
	}, logger)

	assembler := discovery.NewAssembler(
		discovery.NewResolver(mb, logger),
		discovery.NewProfileFetcher(mb, art, placeholder, logger),
		matcher,
		logger,
	)

	return &catalog{limits: limits, registry: registry, assembler: assembler}, nil
}

// newFetchers builds one fetch client for the primary catalogs and another
// for album search, each with its own proxy chain.
func newFetchers(cfg *config.Config, logger *slog.Logger) (primary, secondary *fetch.Client) {
	opts := func(proxies []string) fetch.Options {
		return fetch.Options{
			Proxies:   fetch.ParseProxies(proxies),
			UserAgent: cfg.Catalog.UserAgent,
			Timeout:   cfg.Catalog.Timeout,
		}
	}
	return fetch.New(opts(cfg.Catalog.Proxies), logger), fetch.New(opts(cfg.Catalog.ITunesProxies), logger)
}

func applyRateLimits(limits *provider.RateLimiterMap, overrides map[string]float64) {
	for name, rps := range overrides {
		limits.SetLimit(provider.ProviderName(name), rate.Limit(rps))
	}
}

// placeholderURL serves the configured placeholder through the static
// handler, cache-busted, when it lives under /static.
func placeholderURL(cfg *config.Config, sa *api.StaticAssets) string {
	rel, ok := strings.CutPrefix(cfg.Catalog.Placeholder, "/static")
	if ok && sa.Has(rel) {
		return sa.Path(rel)
	}
	return cfg.Catalog.Placeholder
}

// lookup runs the pipeline once from the command line and prints every
// state as a JSON line.
func lookup(args []string) error {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return errors.New("usage: loudcat lookup <artist name>")
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Logs go to stderr so stdout stays machine-readable.
	logManager, logger := logging.NewManagerWithWriter(cfg.Logging, os.Stderr)
	defer logManager.Close() //nolint:errcheck

	cat, err := buildCatalog(cfg, cfg.Catalog.Placeholder, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	final := cat.assembler.Load(ctx, name, func(s discovery.State) {
		if err := enc.Encode(s); err != nil {
			logger.Error("writing state", "error", err)
		}
	})
	if final.Phase != discovery.PhaseComplete {
		return fmt.Errorf("%s: %s", final.Phase, final.Message)
	}
	return nil
}

// resetCredentials wipes all user accounts and sessions. Search history goes
// with the accounts.
func resetCredentials() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	db, err := database.OpenAndMigrate(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if _, err := db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clearing sessions: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return fmt.Errorf("clearing user accounts: %w", err)
	}

	fmt.Println("Credentials reset successfully.")
	fmt.Println("All user accounts, sessions, and search history have been cleared.")
	return nil
}
