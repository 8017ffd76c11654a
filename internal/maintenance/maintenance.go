// Package maintenance runs periodic database housekeeping: expired session
// cleanup, PRAGMA optimize, and a WAL checkpoint.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Status holds database maintenance status information.
type Status struct {
	DBFileSize      int64  `json:"db_file_size"`
	WALFileSize     int64  `json:"wal_file_size"`
	PageCount       int64  `json:"page_count"`
	PageSize        int64  `json:"page_size"`
	Users           int64  `json:"users"`
	ActiveSessions  int64  `json:"active_sessions"`
	HistoryEntries  int64  `json:"history_entries"`
	LastRunAt       string `json:"last_run_at,omitempty"`
	SessionsRemoved int64  `json:"sessions_removed"`
	ScheduleEnabled bool   `json:"schedule_enabled"`
	ScheduleEvery   string `json:"schedule_interval,omitempty"`
}

// SessionCleaner removes expired sessions and reports how many went.
type SessionCleaner interface {
	CleanExpiredSessions(ctx context.Context) (int64, error)
}

// Service provides database maintenance operations.
type Service struct {
	db       *sql.DB
	dbPath   string
	sessions SessionCleaner
	interval time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	lastRun     time.Time
	lastRemoved int64
}

// NewService creates a maintenance service. sessions may be nil.
func NewService(db *sql.DB, dbPath string, sessions SessionCleaner, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		dbPath:   dbPath,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "maintenance")),
	}
}

// Status returns current database maintenance status.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.dbPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&st.PageCount); err != nil {
		return nil, fmt.Errorf("reading page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&st.PageSize); err != nil {
		return nil, fmt.Errorf("reading page_size: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	counts := []struct {
		query string
		args  []any
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM users", nil, &st.Users},
		{"SELECT COUNT(*) FROM sessions WHERE expires_at > ?", []any{now}, &st.ActiveSessions},
		{"SELECT COUNT(*) FROM search_history", nil, &st.HistoryEntries},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			s.logger.Warn("counting rows", "query", c.query, "error", err)
		}
	}

	s.mu.Lock()
	if !s.lastRun.IsZero() {
		st.LastRunAt = s.lastRun.UTC().Format(time.RFC3339)
	}
	st.SessionsRemoved = s.lastRemoved
	st.ScheduleEnabled = s.interval > 0
	if s.interval > 0 {
		st.ScheduleEvery = s.interval.String()
	}
	s.mu.Unlock()

	return st, nil
}

// Run removes expired sessions, then runs PRAGMA optimize followed by a WAL
// checkpoint.
func (s *Service) Run(ctx context.Context) error {
	var removed int64
	if s.sessions != nil {
		n, err := s.sessions.CleanExpiredSessions(ctx)
		if err != nil {
			return fmt.Errorf("cleaning sessions: %w", err)
		}
		removed = n
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastRemoved = removed
	s.mu.Unlock()

	s.logger.Info("maintenance complete", slog.Int64("sessions_removed", removed))
	return nil
}

// Vacuum runs VACUUM to rebuild the database file.
func (s *Service) Vacuum(ctx context.Context) error {
	s.logger.Info("running VACUUM")
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM: %w", err)
	}
	s.logger.Info("vacuum complete")
	return nil
}

// StartScheduler runs Run on a fixed interval until the context is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	s.logger.Info("maintenance scheduler started",
		slog.String("interval", interval.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("scheduled maintenance failed", slog.Any("error", err))
			}
		}
	}
}
