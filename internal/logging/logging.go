// Package logging builds the process-wide slog logger and lets its level,
// format, and file output change while the server runs.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the logging section of the application config.
type Config struct {
	Level  string     `yaml:"level" json:"level"`
	Format string     `yaml:"format" json:"format"`
	File   FileConfig `yaml:"file" json:"file"`
}

// FileConfig enables a rotating log file next to console output.
type FileConfig struct {
	Path       string `yaml:"path" json:"path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress" json:"compress,omitempty"`
}

// DefaultConfig returns info-level JSON logging to the console only.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		File: FileConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// swapHandler forwards to a handler that can be replaced at runtime.
// Loggers derived with With or WithGroup keep following later swaps.
type swapHandler struct {
	root *atomic.Pointer[slog.Handler]
	ops  []func(slog.Handler) slog.Handler
}

func (h *swapHandler) current() slog.Handler {
	inner := *h.root.Load()
	for _, op := range h.ops {
		inner = op(inner)
	}
	return inner
}

func (h *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*h.root.Load()).Enabled(ctx, level)
}

func (h *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *swapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *swapHandler) derive(op func(slog.Handler) slog.Handler) *swapHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &swapHandler{root: h.root, ops: append(ops, op)}
}

// Manager owns the logger and applies config changes to it.
type Manager struct {
	mu      sync.Mutex
	level   *slog.LevelVar
	root    *atomic.Pointer[slog.Handler]
	console io.Writer
	file    *lumberjack.Logger
	config  Config
}

// NewManager creates a Manager writing to stdout and returns it with its logger.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	return NewManagerWithWriter(cfg, os.Stdout)
}

// NewManagerWithWriter is NewManager with an explicit console writer.
func NewManagerWithWriter(cfg Config, console io.Writer) (*Manager, *slog.Logger) {
	m := &Manager{
		level:   &slog.LevelVar{},
		root:    &atomic.Pointer[slog.Handler]{},
		console: console,
	}
	m.apply(cfg)
	return m, slog.New(&swapHandler{root: m.root})
}

// Reconfigure applies cfg. A level change takes effect immediately; format
// or file changes rebuild the handler.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(cfg)
}

func (m *Manager) apply(cfg Config) {
	level, _ := ParseLevel(cfg.Level)
	m.level.Set(level)

	if m.root.Load() != nil && cfg.Format == m.config.Format && cfg.File == m.config.File {
		m.config = cfg
		return
	}

	if m.file != nil {
		m.file.Close() //nolint:errcheck
		m.file = nil
	}

	var w io.Writer = m.console
	if cfg.File.Path != "" {
		m.file = &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    positiveOr(cfg.File.MaxSizeMB, 50),
			MaxBackups: positiveOr(cfg.File.MaxBackups, 3),
			MaxAge:     positiveOr(cfg.File.MaxAgeDays, 14),
			Compress:   cfg.File.Compress,
		}
		w = io.MultiWriter(m.console, m.file)
	}

	opts := &slog.HandlerOptions{Level: m.level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	m.root.Store(&h)
	m.config = cfg
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Level returns the active minimum level.
func (m *Manager) Level() slog.Level {
	return m.level.Level()
}

// Close closes the log file, if any. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield info and false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, s != ""
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// ValidFormat reports whether s names a supported output format.
func ValidFormat(s string) bool {
	switch strings.ToLower(s) {
	case "text", "json":
		return true
	}
	return false
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
