// Package config loads LoudCat settings from a YAML file overlaid with
// LC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loudcat/loudcat/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  logging.Config `yaml:"logging"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Matching MatchingConfig `yaml:"matching"`
	History  HistoryConfig  `yaml:"history"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
	// Proxy enables the built-in CORS proxy at <base>/proxy.
	Proxy ProxyConfig `yaml:"proxy"`
	// RequestsPerMinute bounds pipeline requests per client IP.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// ProxyConfig controls the built-in CORS proxy.
type ProxyConfig struct {
	Enabled      bool     `yaml:"enabled"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// MaintenanceInterval schedules session cleanup and PRAGMA optimize.
	// Zero disables the scheduler.
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// CatalogConfig describes the upstream catalogs and how to reach them.
type CatalogConfig struct {
	MusicBrainzURL string        `yaml:"musicbrainz_url"`
	CoverArtURL    string        `yaml:"coverart_url"`
	ITunesURL      string        `yaml:"itunes_url"`
	ITunesCountry  string        `yaml:"itunes_country"`
	Proxies        []string      `yaml:"proxies"`
	ITunesProxies  []string      `yaml:"itunes_proxies"`
	UserAgent      string        `yaml:"user_agent"`
	Timeout        time.Duration `yaml:"timeout"`
	Placeholder    string        `yaml:"placeholder"`
	// RateLimits overrides requests per second per provider name.
	RateLimits map[string]float64 `yaml:"rate_limits"`
}

// MatchingConfig tunes cross-catalog album matching.
type MatchingConfig struct {
	MaxAlbums      int           `yaml:"max_albums"`
	CandidateLimit int           `yaml:"candidate_limit"`
	Policy         string        `yaml:"policy"`
	Pacing         string        `yaml:"pacing"`
	PaceInterval   time.Duration `yaml:"pace_interval"`
}

// HistoryConfig bounds stored search history.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "/",
			Proxy: ProxyConfig{
				Enabled:      true,
				AllowedHosts: []string{"musicbrainz.org", "coverartarchive.org", "itunes.apple.com"},
			},
			RequestsPerMinute: 60,
		},
		Database: DatabaseConfig{
			Path:                "/data/loudcat.db",
			MaintenanceInterval: time.Hour,
		},
		Logging: logging.DefaultConfig(),
		Catalog: CatalogConfig{
			MusicBrainzURL: "https://musicbrainz.org/ws/2",
			CoverArtURL:    "https://coverartarchive.org",
			ITunesURL:      "https://itunes.apple.com",
			UserAgent:      "LoudCat/1.0 (https://github.com/loudcat/loudcat)",
			Timeout:        10 * time.Second,
			Placeholder:    "/static/img/placeholder-artist.svg",
		},
		Matching: MatchingConfig{
			MaxAlbums:      20,
			CandidateLimit: 1,
			Policy:         "first",
			Pacing:         "fixed",
			PaceInterval:   200 * time.Millisecond,
		},
		History: HistoryConfig{
			MaxEntries: 50,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv(lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}
	var errs []error
	atoi := func(key string, dst *int) {
		if v, ok := env(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}

	atoi("LC_PORT", &c.Server.Port)
	str("LC_BASE_PATH", &c.Server.BasePath)
	atoi("LC_REQUESTS_PER_MINUTE", &c.Server.RequestsPerMinute)
	if v, ok := env("LC_PROXY_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LC_PROXY_ENABLED: %w", err))
		} else {
			c.Server.Proxy.Enabled = b
		}
	}
	str("LC_DB_PATH", &c.Database.Path)
	duration("LC_MAINTENANCE_INTERVAL", &c.Database.MaintenanceInterval)
	str("LC_LOG_LEVEL", &c.Logging.Level)
	str("LC_LOG_FORMAT", &c.Logging.Format)
	str("LC_LOG_FILE", &c.Logging.File.Path)
	str("LC_MUSICBRAINZ_URL", &c.Catalog.MusicBrainzURL)
	str("LC_COVERART_URL", &c.Catalog.CoverArtURL)
	str("LC_ITUNES_URL", &c.Catalog.ITunesURL)
	str("LC_ITUNES_COUNTRY", &c.Catalog.ITunesCountry)
	str("LC_USER_AGENT", &c.Catalog.UserAgent)
	str("LC_PLACEHOLDER", &c.Catalog.Placeholder)
	duration("LC_FETCH_TIMEOUT", &c.Catalog.Timeout)
	if v, ok := env("LC_CORS_PROXIES"); ok {
		c.Catalog.Proxies = splitList(v)
	}
	if v, ok := env("LC_ITUNES_PROXIES"); ok {
		c.Catalog.ITunesProxies = splitList(v)
	}
	atoi("LC_MATCH_MAX_ALBUMS", &c.Matching.MaxAlbums)
	atoi("LC_MATCH_CANDIDATES", &c.Matching.CandidateLimit)
	str("LC_MATCH_POLICY", &c.Matching.Policy)
	str("LC_PACING", &c.Matching.Pacing)
	duration("LC_PACE_INTERVAL", &c.Matching.PaceInterval)
	atoi("LC_HISTORY_MAX", &c.History.MaxEntries)

	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.MaintenanceInterval < 0 {
		return fmt.Errorf("database.maintenance_interval must not be negative")
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		c.Server.BasePath = "/" + c.Server.BasePath
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}

	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	for name, raw := range map[string]string{
		"musicbrainz_url": c.Catalog.MusicBrainzURL,
		"coverart_url":    c.Catalog.CoverArtURL,
		"itunes_url":      c.Catalog.ITunesURL,
	} {
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("catalog.%s: %w", name, err)
		}
	}
	for _, p := range c.Catalog.Proxies {
		if err := validateHTTPURL(p); err != nil {
			return fmt.Errorf("catalog.proxies: %w", err)
		}
	}
	for _, p := range c.Catalog.ITunesProxies {
		if err := validateHTTPURL(p); err != nil {
			return fmt.Errorf("catalog.itunes_proxies: %w", err)
		}
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive")
	}
	for name, rps := range c.Catalog.RateLimits {
		if rps <= 0 {
			return fmt.Errorf("catalog.rate_limits.%s must be positive", name)
		}
	}

	if c.Matching.MaxAlbums < 1 {
		return fmt.Errorf("matching.max_albums must be at least 1")
	}
	if c.Matching.CandidateLimit < 1 {
		return fmt.Errorf("matching.candidate_limit must be at least 1")
	}
	c.Matching.Policy = strings.ToLower(strings.TrimSpace(c.Matching.Policy))
	switch c.Matching.Policy {
	case "", "first", "title":
	default:
		return fmt.Errorf("unknown matching.policy %q", c.Matching.Policy)
	}
	switch c.Matching.Pacing {
	case "", "fixed", "token_bucket":
	default:
		return fmt.Errorf("unknown matching.pacing %q", c.Matching.Pacing)
	}
	if c.Matching.PaceInterval < 0 {
		return fmt.Errorf("matching.pace_interval must not be negative")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
