// Package history keeps the recent artist searches of signed-in listeners.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loudcat/loudcat/internal/auth"
	"github.com/loudcat/loudcat/internal/event"
)

// DefaultMaxEntries is how many searches are kept per user.
const DefaultMaxEntries = 50

// Entry is one completed artist search.
type Entry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	ArtistID   string    `json:"artist_id"`
	ArtistName string    `json:"artist_name"`
	AlbumCount int       `json:"album_count"`
	Matched    int       `json:"matched"`
	SearchedAt time.Time `json:"searched_at"`
}

// Service stores search history in SQLite.
type Service struct {
	db         *sql.DB
	maxEntries int
	logger     *slog.Logger
}

// NewService creates a history service. maxEntries <= 0 uses DefaultMaxEntries.
func NewService(db *sql.DB, maxEntries int, logger *slog.Logger) *Service {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Service{
		db:         db,
		maxEntries: maxEntries,
		logger:     logger.With(slog.String("component", "history")),
	}
}

// Record stores e for the signed-in user. Anonymous sessions are a no-op.
func (s *Service) Record(ctx context.Context, sess auth.Session, e Entry) error {
	userID, ok := currentUser(sess)
	if !ok {
		return nil
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.SearchedAt.IsZero() {
		e.SearchedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (id, user_id, query, artist_id, artist_name, album_count, matched, searched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, userID, e.Query, e.ArtistID, e.ArtistName, e.AlbumCount, e.Matched,
		e.SearchedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording search: %w", err)
	}

	// Keep only the newest maxEntries rows for this user.
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM search_history
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM search_history WHERE user_id = ?
			ORDER BY searched_at DESC LIMIT ?
		)
	`, userID, userID, s.maxEntries)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	return nil
}

// List returns the signed-in user's searches, newest first.
func (s *Service) List(ctx context.Context, sess auth.Session, limit int) ([]Entry, error) {
	userID, ok := currentUser(sess)
	if !ok {
		return []Entry{}, nil
	}
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, artist_id, artist_name, album_count, matched, searched_at
		FROM search_history WHERE user_id = ?
		ORDER BY searched_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &e.Query, &e.ArtistID, &e.ArtistName, &e.AlbumCount, &e.Matched, &at); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.SearchedAt, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parsing searched_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes the signed-in user's history and returns how many rows went.
func (s *Service) Clear(ctx context.Context, sess auth.Session) (int64, error) {
	userID, ok := currentUser(sess)
	if !ok {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM search_history WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	return res.RowsAffected()
}

// Subscribe records every ProfileLoaded event that carries a user ID.
func (s *Service) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.ProfileLoaded, s.handleProfileLoaded)
}

func (s *Service) handleProfileLoaded(e event.Event) {
	userID := e.String("user_id")
	if userID == "" {
		return
	}

	entry := Entry{
		Query:      e.String("query"),
		ArtistID:   e.String("artist_id"),
		ArtistName: e.String("artist_name"),
		AlbumCount: intValue(e.Data["albums"]),
		Matched:    intValue(e.Data["matched"]),
		SearchedAt: e.Timestamp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Record(ctx, auth.Identity{UserID: userID}, entry); err != nil {
		s.logger.Warn("recording search history failed",
			slog.String("user_id", userID),
			slog.String("query", entry.Query),
			slog.String("error", err.Error()))
	}
}

func currentUser(sess auth.Session) (string, bool) {
	if sess == nil {
		return "", false
	}
	return sess.CurrentUserID()
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
